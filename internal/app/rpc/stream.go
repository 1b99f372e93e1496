package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatroom/internal/app/api"
	"chatroom/internal/app/event"
	"chatroom/internal/pkg/errs"
)

const (
	// pongWait is how long the stream may stay silent before it is considered dead.
	// The server pings well within it.
	pongWait = 60 * time.Second

	writeWait = 10 * time.Second

	// Close codes sent by the server, see chat.Subscriber.
	CloseCodeUserLeft = 4001
	CloseCodeTooSlow  = 4002
)

var (
	// ErrSessionEnded is reported by a stream the server closed because its user left.
	ErrSessionEnded = errors.New("rpc: session ended by server")
)

// EventStream is a live sequence of chatroom events.
//
//	for s.Receive() {
//		handle(s.Msg())
//	}
//	err := s.Err()
type EventStream interface {
	// Receive blocks until the next event arrives. It returns false once the stream ends.
	Receive() bool

	// Msg returns the event read by the last successful Receive.
	Msg() event.Envelope

	// Err returns the error that ended the stream, or nil when it was closed locally.
	Err() error

	// Close ends the stream and unblocks a pending Receive.
	Close() error
}

// OpenEventStream opens the live event stream of the session's user.
// A rejected handshake is returned as *errs.CustomError.
func (c *Client) OpenEventStream(ctx context.Context) (EventStream, error) {
	u := c.base.JoinPath(api.PathEventStream)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, res, err := c.dialer.DialContext(ctx, u.String(), c.session.Header())
	if err != nil {
		if res != nil {
			defer res.Body.Close()
			if res.StatusCode != http.StatusSwitchingProtocols {
				if derr := decodeResponse(res, nil); derr != nil {
					return nil, derr
				}
			}
		}
		return nil, err
	}

	c.logger.Debug().Msg("Event stream opened.")
	return newWSStream(conn), nil
}

// wsStream is an EventStream over a websocket connection.
type wsStream struct {
	conn *websocket.Conn
	msg  event.Envelope
	err  error

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSStream(conn *websocket.Conn) *wsStream {
	s := &wsStream{conn: conn, closed: make(chan struct{})}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	return s
}

func (s *wsStream) Receive() bool {
	if s.err != nil {
		return false
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.err = s.translate(err)
			return false
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.err = err
			return false
		}
		if env.Event.Value == nil {
			// sent by a newer server
			continue
		}

		s.msg = env
		return true
	}
}

// translate maps a read error to what Err reports.
func (s *wsStream) translate(err error) error {
	select {
	case <-s.closed:
		return errStreamClosedLocally
	default:
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case CloseCodeUserLeft:
			return ErrSessionEnded
		case websocket.CloseNormalClosure:
			return errStreamClosedLocally
		}
	}
	return err
}

// errStreamClosedLocally marks a clean end; Err reports it as nil.
var errStreamClosedLocally = errors.New("rpc: stream closed")

func (s *wsStream) Msg() event.Envelope {
	return s.msg
}

func (s *wsStream) Err() error {
	if errors.Is(s.err, errStreamClosedLocally) {
		return nil
	}
	return s.err
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = s.conn.Close()
	})
	return err
}

// IsPermanent reports whether err means retrying the stream cannot succeed
// without a new session.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrSessionEnded) ||
		errs.HasCode(err, errs.ErrUnauthorized) ||
		errs.HasCode(err, errs.ErrTokenInvalid)
}
