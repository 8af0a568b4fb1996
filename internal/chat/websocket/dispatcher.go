package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

const defaultSendTimeout = 2 * time.Second

// Dispatcher delivers events to live connections. Each connection gets at most
// one attempt per event; a connection that fails is closed and disconnected.
type Dispatcher struct {
	hub         *Hub
	sendTimeout time.Duration
	log         *logger.Logger
}

func newDispatcher(hub *Hub, sendTimeout time.Duration, log *logger.Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Dispatcher{hub: hub, sendTimeout: sendTimeout, log: log}
}

func (d *Dispatcher) SendToUser(ctx context.Context, user domain.UserID, event any) {
	frame, ok := d.encode(ctx, event)
	if !ok {
		return
	}
	for _, conn := range d.hub.ConnectionsOf(user) {
		d.deliver(ctx, user, conn, frame)
	}
}

// SendToConnection targets a single connection of user, e.g. the one a frame came from.
func (d *Dispatcher) SendToConnection(ctx context.Context, user domain.UserID, conn Connection, event any) {
	frame, ok := d.encode(ctx, event)
	if !ok {
		return
	}
	d.deliver(ctx, user, conn, frame)
}

// BroadcastToChat sends event to every participant of chat except exclude.
func (d *Dispatcher) BroadcastToChat(ctx context.Context, chat domain.ChatID, event any, exclude *domain.UserID) {
	frame, ok := d.encode(ctx, event)
	if !ok {
		return
	}
	for _, user := range d.hub.ParticipantsOf(chat) {
		if exclude != nil && user == *exclude {
			continue
		}
		for _, conn := range d.hub.ConnectionsOf(user) {
			d.deliver(ctx, user, conn, frame)
		}
	}
}

// NotifyPresence broadcasts a user_status event for user into each of chats.
func (d *Dispatcher) NotifyPresence(ctx context.Context, user domain.UserID, status domain.PresenceStatus, chats []domain.ChatID) {
	if d.hub.isClosing() {
		return
	}
	for _, chat := range chats {
		d.BroadcastToChat(ctx, chat, UserStatusEvent{
			Type:   TypeUserStatus,
			UserID: user,
			Status: status,
			ChatID: chat,
		}, &user)
	}
}

func (d *Dispatcher) encode(ctx context.Context, event any) ([]byte, bool) {
	frame, err := json.Marshal(event)
	if err != nil {
		metrics.ChatWebSocketErrors.WithLabelValues("marshal_failed").Inc()
		d.log.WithFields(ctx, logger.Fields{
			"error":  err.Error(),
			"action": "ws_marshal_failed",
		}).Error("websocket failed to marshal event")
		return nil, false
	}
	return frame, true
}

func (d *Dispatcher) deliver(ctx context.Context, user domain.UserID, conn Connection, frame []byte) {
	// Delivery outlives the caller: a sender leaving mid-broadcast must not look like a dead receiver.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	err := conn.Send(sendCtx, frame)
	cancel()

	if err == nil {
		metrics.ChatWebSocketDeliveries.WithLabelValues("delivered").Inc()
		return
	}

	reason := "failed"
	code := gorillaWS.CloseInternalServerErr
	if errors.Is(err, commonerrors.ErrSendTimeout) {
		reason = "timeout"
		code = gorillaWS.CloseTryAgainLater
	}
	metrics.ChatWebSocketDeliveries.WithLabelValues(reason).Inc()
	metrics.ChatWebSocketDisconnections.WithLabelValues("send_" + reason).Inc()

	d.log.WithFields(ctx, logger.Fields{
		"user_id": user.String(),
		"conn_id": conn.ID(),
		"error":   err.Error(),
		"action":  "ws_prune_connection",
	}).Warn("websocket send failed, dropping connection")

	_ = conn.Close(code, "send failed")
	d.hub.Disconnect(context.WithoutCancel(ctx), user, conn)
}
