package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/db"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/resilience"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

const driverName = "postgres"

// Retries reuse the generated id, so a replayed insert is absorbed by the conflict clause.
const insertMessageSQL = `INSERT INTO message (id, content, sent_at, chat_id, sender_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

type MessageStore struct {
	conn    execer
	breaker *resilience.CircuitBreaker
	retry   db.RetryConfig
	clock   clock.Clock
	log     *logger.Logger
}

func NewMessageStore(conn execer, breaker *resilience.CircuitBreaker, clk clock.Clock, log *logger.Logger) *MessageStore {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &MessageStore{
		conn:    conn,
		breaker: breaker,
		retry:   db.DefaultRetryConfig,
		clock:   clk,
		log:     log,
	}
}

func (s *MessageStore) Append(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, text string) (domain.StoredMessage, error) {
	msg := domain.StoredMessage{
		ID:     uuid.New(),
		SentAt: s.clock.Now().UTC(),
	}

	start := time.Now()
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		return db.RetryWithBackoff(ctx, s.log, s.retry, func(ctx context.Context) error {
			queryStart := time.Now()
			_, err := s.conn.Exec(ctx, insertMessageSQL, msg.ID, text, msg.SentAt, chatID, senderID)
			return db.HandleExecError(err, "insert_message", "message", queryStart)
		})
	})

	if err != nil {
		metrics.MessageStoreAppendDurationSeconds.WithLabelValues(driverName, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, commonerrors.ErrCircuitOpen) {
			return domain.StoredMessage{}, err
		}
		return domain.StoredMessage{}, commonerrors.ErrMessageStoreFailed.WithCause(err)
	}

	metrics.MessageStoreAppendDurationSeconds.WithLabelValues(driverName, "ok").Observe(time.Since(start).Seconds())
	return msg, nil
}
