package websocket

import (
	"context"
	"sync"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

// PresenceMirror publishes online/offline transitions outside the process.
type PresenceMirror interface {
	MarkOnline(ctx context.Context, user domain.UserID) error
	MarkOffline(ctx context.Context, user domain.UserID) error
}

type HubConfig struct {
	SendTimeout time.Duration
	Mirror      PresenceMirror
}

// Hub owns the connection registry and the subscription index. A single lock
// guards both so presence and subscriptions change together.
type Hub struct {
	mu            sync.RWMutex
	registry      *ConnectionRegistry
	subscriptions *SubscriptionIndex
	dispatcher    *Dispatcher
	mirror        PresenceMirror
	closing       bool
	active        sync.WaitGroup
	log           *logger.Logger
}

func NewHub(log *logger.Logger, config HubConfig) *Hub {
	h := &Hub{
		registry:      NewConnectionRegistry(),
		subscriptions: NewSubscriptionIndex(),
		mirror:        config.Mirror,
		log:           log,
	}
	h.dispatcher = newDispatcher(h, config.SendTimeout, log)
	return h
}

func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// Add registers conn for user. It fails once shutdown has started.
func (h *Hub) Add(ctx context.Context, user domain.UserID, conn Connection) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return commonerrors.ErrConnectionClosed
	}
	if h.registry.Contains(user, conn) {
		h.mu.Unlock()
		return nil
	}
	first := h.registry.Add(user, conn)
	h.active.Add(1)
	h.observeLocked()
	h.mu.Unlock()

	metrics.ChatWebSocketConnectionsTotal.Inc()
	h.log.WithFields(ctx, logger.Fields{
		"user_id": user.String(),
		"conn_id": conn.ID(),
		"first":   first,
		"action":  "ws_register",
	}).Info("websocket connection registered")

	if first && h.mirror != nil {
		if err := h.mirror.MarkOnline(ctx, user); err != nil {
			h.mirrorFailed(ctx, user, "mark_online", err)
		}
	}
	return nil
}

// Disconnect removes conn and, when it was the user's last connection,
// drops every subscription and tells the remaining participants the user went offline.
// Calling it again for the same conn is a no-op.
func (h *Hub) Disconnect(ctx context.Context, user domain.UserID, conn Connection) {
	h.mu.Lock()
	if !h.registry.Contains(user, conn) {
		h.mu.Unlock()
		return
	}
	lastGone := h.registry.Remove(user, conn)
	var prior []domain.ChatID
	if lastGone {
		prior = h.subscriptions.UnsubscribeAll(user)
	}
	h.observeLocked()
	h.mu.Unlock()
	h.active.Done()

	h.log.WithFields(ctx, logger.Fields{
		"user_id":   user.String(),
		"conn_id":   conn.ID(),
		"last_gone": lastGone,
		"chats":     len(prior),
		"action":    "ws_unregister",
	}).Info("websocket connection unregistered")

	if !lastGone {
		return
	}

	h.dispatcher.NotifyPresence(ctx, user, domain.StatusOffline, prior)

	if h.mirror != nil {
		if err := h.mirror.MarkOffline(ctx, user); err != nil {
			h.mirrorFailed(ctx, user, "mark_offline", err)
		}
	}
}

// Subscribe marks user as listening to chat. Offline users are refused so that
// a user without connections never holds subscriptions.
func (h *Hub) Subscribe(user domain.UserID, chat domain.ChatID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.registry.IsOnline(user) {
		return commonerrors.ErrUserNotConnected
	}
	h.subscriptions.Subscribe(user, chat)
	return nil
}

func (h *Hub) Unsubscribe(user domain.UserID, chat domain.ChatID) {
	h.mu.Lock()
	h.subscriptions.Unsubscribe(user, chat)
	h.mu.Unlock()
}

func (h *Hub) ConnectionsOf(user domain.UserID) []Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.ConnectionsOf(user)
}

func (h *Hub) IsOnline(user domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.IsOnline(user)
}

// OnlineUsers lists every user with at least one connection.
func (h *Hub) OnlineUsers() []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.Users()
}

func (h *Hub) SubscribedChats(user domain.UserID) []domain.ChatID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscriptions.ChatsOf(user)
}

func (h *Hub) ParticipantsOf(chat domain.ChatID) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscriptions.ParticipantsOf(chat)
}

func (h *Hub) OnlineParticipantsOf(chat domain.ChatID) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	participants := h.subscriptions.ParticipantsOf(chat)
	online := participants[:0]
	for _, user := range participants {
		if h.registry.IsOnline(user) {
			online = append(online, user)
		}
	}
	return online
}

func (h *Hub) isClosing() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closing
}

// Shutdown stops accepting connections, closes every registered connection
// with 1001 and waits for their protocol loops to unregister them.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	var conns []Connection
	for _, user := range h.registry.Users() {
		conns = append(conns, h.registry.ConnectionsOf(user)...)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(gorillaWS.CloseGoingAway, "server shutting down")
	}

	drained := make(chan struct{})
	go func() {
		h.active.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		h.log.WithFields(ctx, logger.Fields{
			"connections": len(conns),
			"action":      "ws_hub_shutdown",
		}).Info("websocket hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.log.WithFields(ctx, logger.Fields{
			"connections": len(conns),
			"action":      "ws_hub_shutdown_timeout",
		}).Warn("websocket hub shutdown timed out")
		return ctx.Err()
	}
}

func (h *Hub) observeLocked() {
	metrics.ChatWebSocketConnectionsActive.Set(float64(h.registry.Connections()))
	metrics.ChatWebSocketUsersOnline.Set(float64(h.registry.OnlineUsers()))
}

func (h *Hub) mirrorFailed(ctx context.Context, user domain.UserID, operation string, err error) {
	metrics.ChatPresenceMirrorErrors.WithLabelValues(operation).Inc()
	h.log.WithFields(ctx, logger.Fields{
		"user_id": user.String(),
		"error":   err.Error(),
		"action":  "presence_mirror_" + operation,
	}).Warn("presence mirror update failed")
}
