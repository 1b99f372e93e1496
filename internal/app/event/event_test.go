package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom/internal/app/user"
)

func TestEnvelope_GlobalChatOmitsReceiver(t *testing.T) {
	env := New(time.Unix(1700000000, 0).UTC(), ChatSent{
		ChatID: "01HZX",
		User:   EventUser{ID: uuid.New(), Details: user.Details{Name: "alice"}},
		Text:   "hi",
	})

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "receiverId")
	assert.Contains(t, string(b), `"case":"chatSent"`)

	var got Envelope
	require.NoError(t, json.Unmarshal(b, &got))
	chat, ok := got.Event.Value.(ChatSent)
	require.True(t, ok)
	assert.Equal(t, uuid.Nil, chat.ReceiverID)
	assert.Equal(t, "hi", chat.Text)
	assert.True(t, env.Time.Equal(got.Time))
}

func TestEvent_UnknownCaseIsIgnored(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"time":"2025-01-01T00:00:00Z","event":{"case":"emojiReply","value":{"x":1}}}`), &env)

	require.NoError(t, err)
	assert.Equal(t, Kind("emojiReply"), env.Event.Case)
	assert.Nil(t, env.Event.Value)
}

func TestEvent_MissingValueFails(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"time":"2025-01-01T00:00:00Z","event":{"case":"userJoin"}}`), &env)

	assert.Error(t, err)
}

func TestEvent_MismatchedCaseFailsToEncode(t *testing.T) {
	_, err := json.Marshal(Event{Case: KindUserJoin, Value: UserLeave{}})
	assert.Error(t, err)
}

func TestReceiver(t *testing.T) {
	rid := uuid.New()

	assert.Equal(t, rid, Receiver(UserTyping{ReceiverID: rid}))
	assert.Equal(t, rid, Receiver(ChatSent{ReceiverID: rid}))
	assert.Equal(t, uuid.Nil, Receiver(UserJoin{}))
}
