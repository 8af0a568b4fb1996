package websocket

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
)

func TestDecodeValidFrames(t *testing.T) {
	d := NewFrameDecoder()
	chat, receiver := uuid.New(), uuid.New()

	f, err := d.Decode([]byte(`{"type":"subscribe_chat","chat_id":"` + chat.String() + `"}`))
	require.NoError(t, err)
	assert.Equal(t, Frame{Type: TypeSubscribeChat, ChatID: chat}, f)

	f, err = d.Decode([]byte(`{"type":"send_message","chat_id":"` + chat.String() + `","content":{"message":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSendMessage, f.Type)
	assert.Equal(t, "hi", f.Text)

	f, err = d.Decode([]byte(`{"type":"new_chat","chat_id":"` + chat.String() + `","receiver_user":{"id":"` + receiver.String() + `","name":"Bob"}}`))
	require.NoError(t, err)
	assert.Equal(t, receiver, f.ReceiverID)

	f, err = d.Decode([]byte(`{"type":"send_message","chat_id":"` + chat.String() + `","content":{"message":""}}`))
	require.NoError(t, err)
	assert.Equal(t, "", f.Text)
}

func TestDecodeAcceptsEveryUUIDSpelling(t *testing.T) {
	d := NewFrameDecoder()
	chat := uuid.MustParse("6f9619ff-8b86-4d11-b42d-00c04fc964ff")

	spellings := []string{
		"6F9619FF-8B86-4D11-B42D-00C04FC964FF",
		"6f9619ff8b864d11b42d00c04fc964ff",
		"urn:uuid:6f9619ff-8b86-4d11-b42d-00c04fc964ff",
		"{6f9619ff-8b86-4d11-b42d-00c04fc964ff}",
	}

	for _, id := range spellings {
		t.Run(id, func(t *testing.T) {
			f, err := d.Decode([]byte(`{"type":"subscribe_chat","chat_id":"` + id + `"}`))
			require.NoError(t, err)
			assert.Equal(t, chat, f.ChatID)

			f, err = d.Decode([]byte(`{"type":"new_chat","chat_id":"` + id + `","receiver_user":{"id":"` + strings.ToUpper(id) + `"}}`))
			require.NoError(t, err)
			assert.Equal(t, chat, f.ChatID)
			assert.Equal(t, chat, f.ReceiverID)
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	d := NewFrameDecoder()
	chat := uuid.NewString()

	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{`, commonerrors.ErrInvalidFrame},
		{"missing type", `{"chat_id":"` + chat + `"}`, commonerrors.ErrInvalidFrame},
		{"unknown type", `{"type":"shout"}`, commonerrors.ErrUnknownMessageType},
		{"bad chat id", `{"type":"typing","chat_id":"nope"}`, commonerrors.ErrInvalidPayload},
		{"missing chat id", `{"type":"unsubscribe_chat"}`, commonerrors.ErrInvalidPayload},
		{"missing message", `{"type":"send_message","chat_id":"` + chat + `","content":{}}`, commonerrors.ErrInvalidPayload},
		{"null message", `{"type":"send_message","chat_id":"` + chat + `","content":{"message":null}}`, commonerrors.ErrInvalidPayload},
		{"short chat id", `{"type":"typing","chat_id":"` + strings.TrimSuffix(chat, "f") + `x"}`, commonerrors.ErrInvalidPayload},
		{"bad receiver", `{"type":"new_chat","chat_id":"` + chat + `","receiver_user":{"id":"x"}}`, commonerrors.ErrInvalidPayload},
		{"wrong field type", `{"type":"typing","chat_id":7}`, commonerrors.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
