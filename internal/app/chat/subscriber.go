/*
Package chat contains the server side of the chatroom.

This file defines the Subscriber struct, one open event stream over a WebSocket connection.
The server only writes on this connection; the read side exists to process control frames
(pong, close) and to notice when the client goes away.
*/
package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 512
)

// WebSocket close codes (4000-4999 range) telling the client why its stream ended.
const (
	CloseCodeGoingAway = websocket.CloseGoingAway
	CloseCodeUserLeft  = 4001
	CloseCodeTooSlow   = 4002
)

// Subscriber is one open event stream of a user.
type Subscriber struct {
	userID user.ID

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue encoded envelopes waiting to be written.
	// Only the Broker closes it.
	send chan []byte

	// closeCode and closeText are set by the Broker before it closes send.
	closeCode int
	closeText string

	logger zerolog.Logger
}

// NewSubscriber constructs a Subscriber for uid writing to wsConn.
func NewSubscriber(wsConn *websocket.Conn, uid user.ID) *Subscriber {
	return &Subscriber{
		userID: uid,
		conn:   wsConn,
		send:   make(chan []byte, subscriberSendBuffer),
		logger: logx.Logger().With().
			Str("component", "subscriber").
			Str("user_id", uid.String()).
			Logger(),
	}
}

// UserID returns the id of the user owning the stream.
func (s *Subscriber) UserID() user.ID { return s.userID }

// Wants reports whether env should be delivered on this stream:
//   - a user's own typing indications are never echoed back;
//   - directed events reach only their sender and receiver.
func (s *Subscriber) Wants(env event.Envelope) bool {
	v := env.Event.Value
	if v == nil {
		return false
	}

	actor := v.Actor().ID
	if env.Event.Case == event.KindUserTyping && actor == s.userID {
		return false
	}

	receiver := event.Receiver(v)
	if receiver != uuid.Nil && receiver != s.userID && actor != s.userID {
		return false
	}
	return true
}

// ReadPump consumes control frames until the connection fails or the client closes it,
// then unregisters the subscriber from the broker.
func (s *Subscriber) ReadPump(b *Broker) {
	defer func() {
		b.Unregister(s)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Subscriber connection close error")
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading from subscriber (client close/going away)")
			}
			return
		}
	}
}

// WritePump writes queued envelopes and periodic pings until the send queue is closed
// or a write fails.
func (s *Subscriber) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Subscriber connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !s.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one message, or a close frame once the queue has been closed.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (s *Subscriber) writeQueuedMessage(message []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		code, text := s.closeCode, s.closeText
		if code == 0 {
			code = websocket.CloseNormalClosure
		}

		if err := s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text)); err != nil {
			s.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		s.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (s *Subscriber) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
