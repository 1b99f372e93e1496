package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom/internal/app/actions"
	"chatroom/internal/app/event"
	"chatroom/internal/app/registry"
	"chatroom/internal/app/session"
	"chatroom/internal/app/user"
	"chatroom/internal/app/view"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/errs"
)

type mockChatAPI struct {
	mock.Mock
}

func (m *mockChatAPI) SendChat(ctx context.Context, receiver uuid.UUID, t time.Time, text string) (string, error) {
	args := m.Called(ctx, receiver, t, text)
	return args.String(0), args.Error(1)
}

func (m *mockChatAPI) IndicateTyping(ctx context.Context, receiver uuid.UUID, typing bool) error {
	return m.Called(ctx, receiver, typing).Error(0)
}

func (m *mockChatAPI) UpdateStatus(ctx context.Context, status user.Status) error {
	return m.Called(ctx, status).Error(0)
}

func newTestModel(t *testing.T) (*Model, *mockChatAPI) {
	t.Helper()

	api := new(mockChatAPI)
	sess := session.New()
	reg := registry.New(nil)
	router := view.NewRouter(sess, reg)

	m := New(context.Background(), Deps{
		Session:  sess,
		Composer: actions.NewComposer(api, router),
		Router:   router,
		Registry: reg,
		Status:   api,
	})
	t.Cleanup(m.Close)

	m.joined = true
	return m, api
}

func typeText(m *Model, text string) {
	m.input.SetValue(text)
}

func TestModel_RefreshesActiveViewOnChange(t *testing.T) {
	m, _ := newTestModel(t)
	bob := event.EventUser{ID: uuid.New(), Details: user.Details{Name: "bob"}}

	m.deps.Router.ApplyStreamEvent(event.New(time.Now(), event.ChatSent{ChatID: "1", User: bob, Text: "hello there"}))

	var change changeMsg
	for msg := range m.updates {
		if c, ok := msg.(changeMsg); ok {
			change = c
			break
		}
	}
	assert.Equal(t, view.GlobalKey, change.Key)

	m.Update(change)
	assert.Contains(t, m.viewport.View(), "hello there")
}

func TestModel_TabCyclesConversations(t *testing.T) {
	m, _ := newTestModel(t)
	peer := uuid.New()
	m.deps.Router.View(peer)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, peer, m.deps.Router.Active())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, view.GlobalKey, m.deps.Router.Active())

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, peer, m.deps.Router.Active())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, view.GlobalKey, m.deps.Router.Active())
}

func TestModel_DirectMessageCommand(t *testing.T) {
	m, _ := newTestModel(t)
	bob := user.User{ID: uuid.New(), Details: user.Details{Name: "Bob"}}
	m.deps.Registry.Add(bob)

	typeText(m, "/dm nobody")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "nobody")
	assert.Equal(t, view.GlobalKey, m.deps.Router.Active())

	typeText(m, "/dm bob")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, bob.ID, m.deps.Router.Active())
	assert.Empty(t, m.input.Value())
	assert.Equal(t, "Message @Bob", m.input.Placeholder)
}

func TestModel_SubmitClearsInputOnSuccess(t *testing.T) {
	m, api := newTestModel(t)
	api.On("IndicateTyping", mock.Anything, uuid.Nil, false).Return(nil)
	api.On("SendChat", mock.Anything, uuid.Nil, mock.Anything, "hi all").Return("c1", nil).Once()

	typeText(m, "hi all")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, sentMsg{text: "hi all"}, msg)

	m.Update(msg)
	assert.Empty(t, m.input.Value())
	api.AssertExpectations(t)
}

func TestModel_SubmitKeepsInputOnError(t *testing.T) {
	m, api := newTestModel(t)
	api.On("IndicateTyping", mock.Anything, uuid.Nil, false).Return(nil)
	api.On("SendChat", mock.Anything, uuid.Nil, mock.Anything, "hi all").
		Return("", errs.NewError(errs.ErrTokenInvalid)).Once()

	typeText(m, "hi all")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m.Update(cmd())
	assert.Equal(t, "hi all", m.input.Value())
	assert.Equal(t, errs.NewError(errs.ErrTokenInvalid).Message, m.status)
}

func TestModel_StatusCommand(t *testing.T) {
	m, api := newTestModel(t)
	api.On("UpdateStatus", mock.Anything, user.StatusAway).Return(nil).Once()

	typeText(m, "/status nope")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "Usage")

	typeText(m, "/status away")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	api.AssertExpectations(t)
}

func TestErrText(t *testing.T) {
	assert.Equal(t, "boom", errText(errors.New("boom")))

	wrapped := errors.Join(errors.New("context"), errs.NewError(errs.ErrUnauthorized))
	assert.Equal(t, errs.NewError(errs.ErrUnauthorized).Message, errText(wrapped))
}

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) Join(ctx context.Context, details user.Details, flags user.Flag) (string, error) {
	args := m.Called(ctx, details, flags)
	return args.String(0), args.Error(1)
}

func (m *mockAuthAPI) Leave(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAuthAPI) Renew(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func TestModel_FailedStartRetriesWithoutRejoining(t *testing.T) {
	m, _ := newTestModel(t)
	m.joined = false

	token, err := jwt.GenerateToken(jwt.NewClaims(uuid.New()), "secret", time.Hour)
	require.NoError(t, err)

	authAPI := new(mockAuthAPI)
	authAPI.On("Join", mock.Anything, user.Details{Name: "alice"}, user.FlagNone).Return(token, nil).Once()
	m.deps.Auth = actions.NewAuth(authAPI, m.deps.Session, user.FlagNone)

	starts := 0
	m.deps.Start = func(context.Context) (<-chan error, error) {
		starts++
		if starts == 1 {
			return nil, errors.New("users unavailable")
		}
		return make(chan error), nil
	}

	typeText(m, "alice")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m.Update(cmd())

	assert.False(t, m.joined)
	assert.True(t, m.deps.Session.Authenticated())
	assert.Contains(t, m.status, "retry")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, joinedMsg{}, msg)
	m.Update(msg)

	assert.True(t, m.joined)
	assert.Equal(t, 2, starts)
	authAPI.AssertExpectations(t)
}
