// Package presence mirrors hub presence into Redis for readers outside the process.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/constants"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

// StatusChange is the payload published on every transition.
type StatusChange struct {
	UserID   domain.UserID         `json:"user_id"`
	Status   domain.PresenceStatus `json:"status"`
	LastSeen int64                 `json:"last_seen"`
}

// RedisMirror keeps presence:<user> keys alive with a TTL while the user is online
// and publishes each transition on the presence channel.
type RedisMirror struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	ttl     time.Duration
	clock   clock.Clock
	log     *logger.Logger
}

func NewRedisMirror(client redis.UniversalClient, ttl time.Duration, clk clock.Clock, log *logger.Logger) *RedisMirror {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &RedisMirror{
		client:  client,
		prefix:  constants.PresenceKeyPrefix,
		channel: constants.PresenceChannel,
		ttl:     ttl,
		clock:   clk,
		log:     log,
	}
}

func (m *RedisMirror) key(user domain.UserID) string {
	return m.prefix + user.String()
}

func (m *RedisMirror) MarkOnline(ctx context.Context, user domain.UserID) error {
	change := StatusChange{UserID: user, Status: domain.StatusOnline, LastSeen: m.clock.Now().Unix()}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.key(user), payload, m.ttl)
		pipe.Publish(ctx, m.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

func (m *RedisMirror) MarkOffline(ctx context.Context, user domain.UserID) error {
	change := StatusChange{UserID: user, Status: domain.StatusOffline, LastSeen: m.clock.Now().Unix()}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.key(user))
		pipe.Publish(ctx, m.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

// IsOnline reads the mirrored state of user.
func (m *RedisMirror) IsOnline(ctx context.Context, user domain.UserID) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(user)).Result()
	if err != nil {
		return false, fmt.Errorf("read presence: %w", err)
	}
	return n == 1, nil
}

// Refresh extends the TTL of every user in users.
func (m *RedisMirror) Refresh(ctx context.Context, users []domain.UserID) error {
	if len(users) == 0 {
		return nil
	}
	_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, user := range users {
			pipe.Expire(ctx, m.key(user), m.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	return nil
}

// Run refreshes online users at half the TTL until ctx is done.
func (m *RedisMirror) Run(ctx context.Context, online func() []domain.UserID) {
	interval := m.ttl / 2
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx, online()); err != nil {
				metrics.ChatPresenceMirrorErrors.WithLabelValues("refresh").Inc()
				m.log.WithFields(ctx, logger.Fields{
					"error":  err.Error(),
					"action": "presence_mirror_refresh",
				}).Warn("presence mirror refresh failed")
			}
		}
	}
}

func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
