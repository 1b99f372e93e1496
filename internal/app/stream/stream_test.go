package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom/internal/app/event"
	"chatroom/internal/app/rpc"
	"chatroom/internal/app/user"
)

// fakeStream delivers its events, then either ends with err or blocks until closed.
type fakeStream struct {
	events []event.Envelope
	err    error
	block  bool

	i      int
	msg    event.Envelope
	once   sync.Once
	closed chan struct{}
}

func newFakeStream(err error, block bool, events ...event.Envelope) *fakeStream {
	return &fakeStream{events: events, err: err, block: block, closed: make(chan struct{})}
}

func (s *fakeStream) Receive() bool {
	if s.i < len(s.events) {
		s.msg = s.events[s.i]
		s.i++
		return true
	}
	if s.block {
		<-s.closed
	}
	return false
}

func (s *fakeStream) Msg() event.Envelope { return s.msg }

func (s *fakeStream) Err() error {
	if s.block {
		return nil
	}
	return s.err
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// scriptedOpener hands out one scripted result per call and fails once the script runs out.
type scriptedOpener struct {
	mu      sync.Mutex
	results []any
	calls   atomic.Int32
}

func (o *scriptedOpener) OpenEventStream(ctx context.Context) (rpc.EventStream, error) {
	o.calls.Add(1)

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.results) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := o.results[0]
	o.results = o.results[1:]

	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(*fakeStream), nil
}

type recordingReducer struct {
	mu      sync.Mutex
	live    []event.Envelope
	history [][]event.Envelope
}

func (r *recordingReducer) ApplyStreamEvent(env event.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = append(r.live, env)
	return true
}

func (r *recordingReducer) ApplyHistory(batch []event.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, batch)
}

func (r *recordingReducer) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) PreviousEvents(ctx context.Context, limit int) ([]event.Envelope, error) {
	args := m.Called(ctx, limit)
	list, _ := args.Get(0).([]event.Envelope)
	return list, args.Error(1)
}

var fastOptions = Options{ReconnectBase: time.Millisecond, ReconnectMax: 5 * time.Millisecond}

func chatEnvelope(text string) event.Envelope {
	u := event.EventUser{ID: uuid.New(), Details: user.Details{Name: "u"}}
	return event.New(time.Now(), event.ChatSent{ChatID: uuid.NewString(), User: u, Text: text})
}

func runAsync(ctx context.Context, c *Client) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func TestRun_ReopensOncePerDisconnect(t *testing.T) {
	first := newFakeStream(errors.New("connection reset"), false, chatEnvelope("1"), chatEnvelope("2"))
	second := newFakeStream(nil, true, chatEnvelope("3"))
	opener := &scriptedOpener{results: []any{first, second}}
	reducer := &recordingReducer{}

	var hooked atomic.Int32
	opts := fastOptions
	opts.OnEvent = func(event.Envelope, bool) { hooked.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, New(opener, nil, reducer, opts))

	require.Eventually(t, func() bool { return reducer.liveCount() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), opener.calls.Load())
	require.Eventually(t, func() bool { return hooked.Load() == 3 }, time.Second, time.Millisecond)
	assert.True(t, first.isClosed())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.True(t, second.isClosed(), "cancel must close the open stream")
	assert.Equal(t, int32(2), opener.calls.Load())
}

func TestRun_RetriesFailedOpens(t *testing.T) {
	connected := newFakeStream(nil, true, chatEnvelope("hello"))
	opener := &scriptedOpener{results: []any{
		errors.New("dial refused"),
		errors.New("dial refused"),
		connected,
	}}
	reducer := &recordingReducer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, New(opener, nil, reducer, fastOptions))

	require.Eventually(t, func() bool { return reducer.liveCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(3), opener.calls.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_StopsWhenSessionEnded(t *testing.T) {
	opener := &scriptedOpener{results: []any{newFakeStream(rpc.ErrSessionEnded, false, chatEnvelope("bye"))}}
	reducer := &recordingReducer{}

	err := New(opener, nil, reducer, fastOptions).Run(context.Background())
	assert.ErrorIs(t, err, rpc.ErrSessionEnded)
	assert.Equal(t, 1, reducer.liveCount())
	assert.Equal(t, int32(1), opener.calls.Load())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opener := &scriptedOpener{}
	err := New(opener, nil, &recordingReducer{}, fastOptions).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, opener.calls.Load())
}

func TestRun_CancelDuringBackoff(t *testing.T) {
	opener := &scriptedOpener{results: []any{errors.New("down")}}
	opts := Options{ReconnectBase: time.Hour, ReconnectMax: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, New(opener, nil, &recordingReducer{}, opts))

	require.Eventually(t, func() bool { return opener.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop during backoff")
	}
}

func TestLoadPrevious(t *testing.T) {
	page := []event.Envelope{chatEnvelope("2"), chatEnvelope("1")}
	history := new(mockHistory)
	history.On("PreviousEvents", mock.Anything, 20).Return(page, nil).Once()

	reducer := &recordingReducer{}
	c := New(nil, history, reducer, fastOptions)

	require.NoError(t, c.LoadPrevious(context.Background(), 20))
	require.Len(t, reducer.history, 1)
	assert.Equal(t, page, reducer.history[0])
	history.AssertExpectations(t)
}

func TestLoadPrevious_ErrorLeavesStateUntouched(t *testing.T) {
	history := new(mockHistory)
	history.On("PreviousEvents", mock.Anything, 5).Return(nil, errors.New("unavailable")).Once()

	reducer := &recordingReducer{}
	c := New(nil, history, reducer, fastOptions)

	assert.Error(t, c.LoadPrevious(context.Background(), 5))
	assert.Empty(t, reducer.history)
	history.AssertExpectations(t)
}
