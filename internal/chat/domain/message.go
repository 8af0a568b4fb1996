package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChatID = uuid.UUID

type StoredMessage struct {
	ID     uuid.UUID
	SentAt time.Time
}

type MessageStore interface {
	Append(ctx context.Context, chatID ChatID, senderID UserID, text string) (StoredMessage, error)
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
