// Package events publishes persisted chat messages to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

const messageCreated = "message.created"

// MessageCreated is the record written for every appended message, keyed by chat id.
type MessageCreated struct {
	Event     string        `json:"event"`
	MessageID string        `json:"message_id"`
	ChatID    domain.ChatID `json:"chat_id"`
	SenderID  domain.UserID `json:"sender_id"`
	Content   string        `json:"content"`
	SentAt    time.Time     `json:"sent_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishingStore appends through the wrapped store and then emits a MessageCreated record.
// Publishing never fails the append.
type PublishingStore struct {
	next   domain.MessageStore
	writer messageWriter
	log    *logger.Logger
}

func NewPublishingStore(next domain.MessageStore, writer messageWriter, log *logger.Logger) *PublishingStore {
	return &PublishingStore{next: next, writer: writer, log: log}
}

// NewKafkaWriter builds an async writer; delivery errors are logged from the completion callback.
func NewKafkaWriter(brokers []string, topic string, log *logger.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				metrics.ChatMessageEventsPublished.WithLabelValues("failed").Add(float64(len(messages)))
				log.Errorf("kafka delivery of %d message events failed: %v", len(messages), err)
				return
			}
			metrics.ChatMessageEventsPublished.WithLabelValues("delivered").Add(float64(len(messages)))
		},
	}
}

func (s *PublishingStore) Append(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, text string) (domain.StoredMessage, error) {
	stored, err := s.next.Append(ctx, chatID, senderID, text)
	if err != nil {
		return stored, err
	}

	payload, err := json.Marshal(MessageCreated{
		Event:     messageCreated,
		MessageID: stored.ID.String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   text,
		SentAt:    stored.SentAt.UTC(),
	})
	if err != nil {
		s.publishFailed(ctx, chatID, err)
		return stored, nil
	}

	msg := kafka.Message{
		Key:   []byte(chatID.String()),
		Value: payload,
		Time:  stored.SentAt,
	}
	if err := s.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		s.publishFailed(ctx, chatID, err)
	}
	return stored, nil
}

func (s *PublishingStore) Close() error {
	return s.writer.Close()
}

func (s *PublishingStore) publishFailed(ctx context.Context, chatID domain.ChatID, err error) {
	metrics.ChatMessageEventsPublished.WithLabelValues("failed").Inc()
	s.log.WithFields(ctx, logger.Fields{
		"chat_id": chatID.String(),
		"error":   err.Error(),
		"action":  "message_event_publish_failed",
	}).Warn("message event not published")
}
