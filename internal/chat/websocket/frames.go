package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
)

type MessageType string

const (
	TypeSubscribeChat   MessageType = "subscribe_chat"
	TypeUnsubscribeChat MessageType = "unsubscribe_chat"
	TypeSendMessage     MessageType = "send_message"
	TypeTyping          MessageType = "typing"
	TypeNewChat         MessageType = "new_chat"

	TypeChatOnlineUsers MessageType = "chat_online_users"
	TypeNewMessage      MessageType = "new_message"
	TypeUserStatus      MessageType = "user_status"
	TypeError           MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Frame is a decoded and validated inbound frame.
type Frame struct {
	Type       MessageType
	ChatID     domain.ChatID
	Text       string
	ReceiverID domain.UserID
}

type inboundEnvelope struct {
	Type MessageType `json:"type"`
}

type chatFrame struct {
	ChatID string `json:"chat_id" validate:"required"`
}

type sendMessageFrame struct {
	ChatID  string `json:"chat_id" validate:"required"`
	Content struct {
		Message *string `json:"message" validate:"required"`
	} `json:"content"`
}

type newChatFrame struct {
	ChatID       string `json:"chat_id" validate:"required"`
	ReceiverUser struct {
		ID string `json:"id" validate:"required"`
	} `json:"receiver_user"`
}

var errMissingType = errors.New("missing type")

// FrameDecoder parses inbound frames. Every failure is a protocol error.
type FrameDecoder struct {
	validate *validator.Validate
}

func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{validate: validator.New()}
}

func (d *FrameDecoder) Decode(data []byte) (Frame, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, commonerrors.ErrInvalidFrame.WithCause(err)
	}

	switch env.Type {
	case TypeSubscribeChat, TypeUnsubscribeChat, TypeTyping:
		var f chatFrame
		if err := d.decodeInto(data, &f); err != nil {
			return Frame{}, err
		}
		chat, err := parseID(f.ChatID)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: env.Type, ChatID: chat}, nil

	case TypeSendMessage:
		var f sendMessageFrame
		if err := d.decodeInto(data, &f); err != nil {
			return Frame{}, err
		}
		chat, err := parseID(f.ChatID)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: env.Type, ChatID: chat, Text: *f.Content.Message}, nil

	case TypeNewChat:
		var f newChatFrame
		if err := d.decodeInto(data, &f); err != nil {
			return Frame{}, err
		}
		chat, err := parseID(f.ChatID)
		if err != nil {
			return Frame{}, err
		}
		receiver, err := parseID(f.ReceiverUser.ID)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: env.Type, ChatID: chat, ReceiverID: receiver}, nil

	case "":
		return Frame{}, commonerrors.ErrInvalidFrame.WithCause(errMissingType)

	default:
		return Frame{}, commonerrors.ErrUnknownMessageType
	}
}

func (d *FrameDecoder) decodeInto(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return commonerrors.ErrInvalidPayload.WithCause(err)
	}
	if err := d.validate.Struct(dst); err != nil {
		return commonerrors.ErrInvalidPayload.WithCause(err)
	}
	return nil
}

// parseID accepts any form uuid.Parse does: hyphenated in either case, bare hex, urn:uuid and braced.
func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, commonerrors.ErrInvalidPayload.WithCause(err)
	}
	return id, nil
}

type UserSummary struct {
	ID    domain.UserID `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
}

func summaryOf(identity domain.UserIdentity) UserSummary {
	return UserSummary{ID: identity.ID, Name: identity.Name, Email: identity.Email}
}

type ChatOnlineUsersEvent struct {
	Type        MessageType     `json:"type"`
	ChatID      domain.ChatID   `json:"chat_id"`
	OnlineUsers []domain.UserID `json:"online_users"`
}

type MessageContent struct {
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type NewMessageEvent struct {
	Type      MessageType    `json:"type"`
	MessageID uuid.UUID      `json:"message_id"`
	ChatID    domain.ChatID  `json:"chat_id"`
	Sender    UserSummary    `json:"sender"`
	Content   MessageContent `json:"content"`
}

type TypingEvent struct {
	Type   MessageType   `json:"type"`
	ChatID domain.ChatID `json:"chat_id"`
	UserID domain.UserID `json:"user_id"`
}

type NewChatEvent struct {
	Type       MessageType   `json:"type"`
	ChatID     domain.ChatID `json:"chat_id"`
	SenderUser UserSummary   `json:"sender_user"`
}

type UserStatusEvent struct {
	Type   MessageType           `json:"type"`
	UserID domain.UserID         `json:"user_id"`
	Status domain.PresenceStatus `json:"status"`
	ChatID domain.ChatID         `json:"chat_id"`
}

type ErrorEvent struct {
	Type    MessageType    `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	ChatID  *domain.ChatID `json:"chat_id,omitempty"`
}

func newMessageEvent(stored domain.StoredMessage, chat domain.ChatID, sender domain.UserIdentity, text string) NewMessageEvent {
	return NewMessageEvent{
		Type:      TypeNewMessage,
		MessageID: stored.ID,
		ChatID:    chat,
		Sender:    summaryOf(sender),
		Content: MessageContent{
			Message:   text,
			CreatedAt: stored.SentAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func errorEvent(err commonerrors.DomainError, chat *domain.ChatID) ErrorEvent {
	return ErrorEvent{
		Type:    TypeError,
		Code:    err.Code(),
		Message: err.Message(),
		ChatID:  chat,
	}
}
