package websocket

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
)

type fakeConn struct {
	id       string
	incoming chan []byte
	done     chan struct{}
	sendErr  error

	mu        sync.Mutex
	sent      [][]byte
	closeCode int
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		id:       uuid.NewString(),
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return commonerrors.ErrConnectionClosed
	default:
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, frame)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) push(t *testing.T, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	c.incoming <- data
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// framesOfType decodes every sent frame whose type matches.
func (c *fakeConn) framesOfType(t *testing.T, mt MessageType) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range c.frames() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["type"] == string(mt) {
			out = append(out, m)
		}
	}
	return out
}

type fakeAuth struct {
	identities map[string]domain.UserIdentity
}

func (a *fakeAuth) Validate(ctx context.Context, credential string) (domain.UserIdentity, error) {
	identity, ok := a.identities[credential]
	if !ok {
		return domain.UserIdentity{}, commonerrors.ErrInvalidToken
	}
	return identity, nil
}

type appendCall struct {
	chat   domain.ChatID
	sender domain.UserID
	text   string
}

type fakeStore struct {
	mu    sync.Mutex
	calls []appendCall
	err   error
	id    uuid.UUID
	at    time.Time
}

func (s *fakeStore) Append(ctx context.Context, chat domain.ChatID, sender domain.UserID, text string) (domain.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, appendCall{chat: chat, sender: sender, text: text})
	if s.err != nil {
		return domain.StoredMessage{}, s.err
	}
	return domain.StoredMessage{ID: s.id, SentAt: s.at}, nil
}

func (s *fakeStore) appendCalls() []appendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appendCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type fakeMirror struct {
	mu      sync.Mutex
	online  []domain.UserID
	offline []domain.UserID
}

func (m *fakeMirror) MarkOnline(ctx context.Context, user domain.UserID) error {
	m.mu.Lock()
	m.online = append(m.online, user)
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) MarkOffline(ctx context.Context, user domain.UserID) error {
	m.mu.Lock()
	m.offline = append(m.offline, user)
	m.mu.Unlock()
	return nil
}
