package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/db"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/resilience"
)

type execCall struct {
	sql  string
	args []interface{}
}

type mockExecer struct {
	mu     sync.Mutex
	calls  []execCall
	execFn func(call int) error
}

func (m *mockExecer) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	m.mu.Lock()
	m.calls = append(m.calls, execCall{sql: sql, args: arguments})
	n := len(m.calls)
	m.mu.Unlock()

	if m.execFn != nil {
		if err := m.execFn(n); err != nil {
			return nil, err
		}
	}
	return pgconn.CommandTag("INSERT 0 1"), nil
}

func newTestStore(conn execer, threshold int32, now time.Time) *MessageStore {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  threshold,
		Timeout:    time.Second,
		ResetAfter: time.Minute,
	})
	store := NewMessageStore(conn, breaker, clock.NewMockClock(now), logger.NewDiscard())
	store.retry = db.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return store
}

func TestAppendInsertsMessageRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	conn := &mockExecer{}
	store := newTestStore(conn, 5, now)

	chatID, senderID := uuid.New(), uuid.New()
	msg, err := store.Append(context.Background(), chatID, senderID, "hi")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, now, msg.SentAt)

	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].sql, "INSERT INTO message (id, content, sent_at, chat_id, sender_id)")
	assert.Equal(t, []interface{}{msg.ID, "hi", now, chatID, senderID}, conn.calls[0].args)
}

func TestAppendRetriesTransientFailuresWithSameID(t *testing.T) {
	conn := &mockExecer{execFn: func(call int) error {
		if call == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}}
	store := newTestStore(conn, 5, time.Now())

	msg, err := store.Append(context.Background(), uuid.New(), uuid.New(), "hi")
	require.NoError(t, err)

	require.Len(t, conn.calls, 2)
	assert.Equal(t, msg.ID, conn.calls[0].args[0])
	assert.Equal(t, msg.ID, conn.calls[1].args[0])
}

func TestAppendWrapsFailures(t *testing.T) {
	conn := &mockExecer{execFn: func(int) error { return &pgconn.PgError{Code: "23503"} }}
	store := newTestStore(conn, 5, time.Now())

	_, err := store.Append(context.Background(), uuid.New(), uuid.New(), "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrMessageStoreFailed))
	assert.Len(t, conn.calls, 1)
}

func TestAppendFailsFastWhenCircuitOpen(t *testing.T) {
	conn := &mockExecer{execFn: func(int) error { return errors.New("connection refused") }}
	store := newTestStore(conn, 1, time.Now())

	_, err := store.Append(context.Background(), uuid.New(), uuid.New(), "first")
	require.Error(t, err)

	_, err = store.Append(context.Background(), uuid.New(), uuid.New(), "second")
	assert.True(t, errors.Is(err, commonerrors.ErrCircuitOpen))
	assert.Len(t, conn.calls, 1)
}
