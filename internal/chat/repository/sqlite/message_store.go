// Package sqlite provides a single-file message store for local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

const (
	driverName = "sqlite"

	// Fixed width so lexical order matches chronological order.
	sentAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

//go:embed schema.sql
var schema string

type MessageStore struct {
	sqlDB *sql.DB
	clock clock.Clock
}

// Open opens the database at path and applies the schema.
func Open(path string, clk clock.Clock) (*MessageStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &MessageStore{sqlDB: sqlDB, clock: clk}, nil
}

func (s *MessageStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *MessageStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *MessageStore) Append(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, text string) (domain.StoredMessage, error) {
	msg := domain.StoredMessage{
		ID:     uuid.New(),
		SentAt: s.clock.Now().UTC(),
	}

	start := time.Now()
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO message (id, content, sent_at, chat_id, sender_id) VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(),
		text,
		msg.SentAt.Format(sentAtLayout),
		chatID.String(),
		senderID.String(),
	)
	if err != nil {
		metrics.MessageStoreAppendDurationSeconds.WithLabelValues(driverName, "error").Observe(time.Since(start).Seconds())
		return domain.StoredMessage{}, commonerrors.ErrMessageStoreFailed.WithCause(fmt.Errorf("insert message: %w", err))
	}

	metrics.MessageStoreAppendDurationSeconds.WithLabelValues(driverName, "ok").Observe(time.Since(start).Seconds())
	return msg, nil
}

// MessagesIn lists a chat's messages oldest first.
func (s *MessageStore) MessagesIn(ctx context.Context, chatID domain.ChatID) ([]StoredRow, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, content, sent_at, sender_id FROM message WHERE chat_id = ? ORDER BY sent_at ASC`,
		chatID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var row StoredRow
		var id, sentAt, by string
		if err := rows.Scan(&id, &row.Content, &sentAt, &by); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if row.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		if row.SenderID, err = uuid.Parse(by); err != nil {
			return nil, fmt.Errorf("parse sender id: %w", err)
		}
		if row.SentAt, err = time.Parse(sentAtLayout, sentAt); err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

type StoredRow struct {
	ID       uuid.UUID
	Content  string
	SentAt   time.Time
	SenderID domain.UserID
}
