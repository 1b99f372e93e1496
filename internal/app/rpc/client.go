/*
Package rpc is the client side of the chatroom HTTP API.

Client wraps every server operation in a typed method. Requests are authorized by the
session.Transport, responses are decoded from the standard JSON envelope, and failed
calls are returned as *errs.CustomError rebuilt from the envelope.
*/
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatroom/internal/app/api"
	"chatroom/internal/app/event"
	"chatroom/internal/app/session"
	"chatroom/internal/app/user"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
)

// maxResponseSize bounds the body read from any API response.
const maxResponseSize = 4 << 20

// responseEnvelope mirrors the server's resp.JSONResponse with a deferred payload.
type responseEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the chatroom server on behalf of one session.
type Client struct {
	base    *url.URL
	session *session.Session
	http    *http.Client
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

// NewClient returns a Client for the server at base. timeout bounds every one-shot call
// and the stream handshake.
func NewClient(base *url.URL, sess *session.Session, timeout time.Duration) *Client {
	return &Client{
		base:    base,
		session: sess,
		http: &http.Client{
			Transport: &session.Transport{Session: sess},
			Timeout:   timeout,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
		logger: logx.Component("rpc"),
	}
}

// Session returns the session the client authorizes with.
func (c *Client) Session() *session.Session {
	return c.session
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends in as JSON (when non-nil) and decodes the payload into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	r, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return err
	}
	r.Header.Set("Accept", "application/json")
	if in != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := decodeResponse(res, out); err != nil {
		c.logger.Debug().Err(err).Str("path", path).Int("status", res.StatusCode).Msg("API call failed.")
		return err
	}
	return nil
}

// decodeResponse reads the JSON envelope of res. Non-success envelopes, and bodies that
// are not envelopes at all, become a *errs.CustomError.
func decodeResponse(res *http.Response, out any) error {
	var env responseEnvelope
	decodeErr := json.NewDecoder(io.LimitReader(res.Body, maxResponseSize)).Decode(&env)

	if res.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil {
			return errs.FromResponse(0, "", res.StatusCode)
		}
		return errs.FromResponse(env.Code, env.Message, res.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if env.Code != 0 {
		return errs.FromResponse(env.Code, env.Message, res.StatusCode)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Join adds a user with the given details to the chatroom and returns the issued token.
// The token is not stored in the session; that is up to the caller.
func (c *Client) Join(ctx context.Context, details user.Details, flags user.Flag) (string, error) {
	var out api.TokenOutput
	if err := c.do(ctx, http.MethodPost, api.PathJoin, nil, api.JoinInput{User: details, Flags: flags}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Leave removes the session's user from the chatroom.
func (c *Client) Leave(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, api.PathLeave, nil, nil, nil)
}

// Renew returns a fresh token for the session's user.
func (c *Client) Renew(ctx context.Context) (string, error) {
	var out api.TokenOutput
	if err := c.do(ctx, http.MethodPost, api.PathRenew, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ActiveUsers lists every active user.
func (c *Client) ActiveUsers(ctx context.Context) ([]user.User, error) {
	var out api.UsersOutput
	if err := c.do(ctx, http.MethodGet, api.PathActiveUsers, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// UpdateStatus changes the session user's presence status.
func (c *Client) UpdateStatus(ctx context.Context, status user.Status) error {
	return c.do(ctx, http.MethodPost, api.PathUpdateStatus, nil, api.StatusInput{Status: status}, nil)
}

// UpdateDetails changes the session user's display details.
func (c *Client) UpdateDetails(ctx context.Context, details user.Details) error {
	return c.do(ctx, http.MethodPost, api.PathUpdateDetails, nil, api.DetailsInput{Details: details}, nil)
}

// SendChat sends text to receiver, or to everyone when receiver is uuid.Nil, and returns the chat id.
func (c *Client) SendChat(ctx context.Context, receiver uuid.UUID, t time.Time, text string) (string, error) {
	var out api.SendChatOutput
	in := api.SendChatInput{ReceiverID: receiver, Time: t, Text: text}
	if err := c.do(ctx, http.MethodPost, api.PathSendChat, nil, in, &out); err != nil {
		return "", err
	}
	return out.ChatID, nil
}

// IndicateTyping tells receiver, or everyone when receiver is uuid.Nil, whether the session user is typing.
func (c *Client) IndicateTyping(ctx context.Context, receiver uuid.UUID, typing bool) error {
	return c.do(ctx, http.MethodPost, api.PathIndicateTyping, nil, api.TypingInput{ReceiverID: receiver, Typing: typing}, nil)
}

// PreviousEvents returns up to limit stored events, newest first.
func (c *Client) PreviousEvents(ctx context.Context, limit int) ([]event.Envelope, error) {
	var out event.History
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if err := c.do(ctx, http.MethodGet, api.PathPreviousEvents, query, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}
