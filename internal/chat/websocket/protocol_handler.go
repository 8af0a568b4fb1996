package websocket

import (
	"context"
	"errors"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

type ProtocolHandlerConfig struct {
	FramesPerSecond float64
	FrameBurst      int
	StoreTimeout    time.Duration
}

// ProtocolHandler drives one connection through
// Connecting -> Authenticated -> Active -> Closed.
type ProtocolHandler struct {
	hub     *Hub
	auth    domain.Authenticator
	store   domain.MessageStore
	decoder *FrameDecoder
	cfg     ProtocolHandlerConfig
	log     *logger.Logger
}

func NewProtocolHandler(hub *Hub, auth domain.Authenticator, store domain.MessageStore, cfg ProtocolHandlerConfig, log *logger.Logger) *ProtocolHandler {
	if cfg.FramesPerSecond <= 0 {
		cfg.FramesPerSecond = 20
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = 40
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &ProtocolHandler{
		hub:     hub,
		auth:    auth,
		store:   store,
		decoder: NewFrameDecoder(),
		cfg:     cfg,
		log:     log,
	}
}

type session struct {
	identity domain.UserIdentity
	conn     Transport
	limiter  *rate.Limiter
}

// Serve blocks until the connection closes or ctx is cancelled.
func (p *ProtocolHandler) Serve(ctx context.Context, t Transport, credential string) {
	identity, err := p.auth.Validate(ctx, credential)
	if err != nil {
		metrics.ChatWebSocketConnectionsRejected.WithLabelValues("auth").Inc()
		p.log.WithFields(ctx, logger.Fields{
			"conn_id": t.ID(),
			"error":   err.Error(),
			"action":  "ws_auth_failed",
		}).Warn("websocket authentication failed")
		_ = t.Close(gorillaWS.ClosePolicyViolation, "authentication failed")
		return
	}

	if err := p.hub.Add(ctx, identity.ID, t); err != nil {
		metrics.ChatWebSocketConnectionsRejected.WithLabelValues("shutdown").Inc()
		_ = t.Close(gorillaWS.CloseGoingAway, "server shutting down")
		return
	}

	s := &session{
		identity: identity,
		conn:     t,
		limiter:  rate.NewLimiter(rate.Limit(p.cfg.FramesPerSecond), p.cfg.FrameBurst),
	}

	stop := context.AfterFunc(ctx, func() {
		_ = t.Close(gorillaWS.CloseGoingAway, "server shutting down")
	})
	defer func() {
		stop()
		p.hub.Disconnect(context.WithoutCancel(ctx), identity.ID, t)
		_ = t.Close(gorillaWS.CloseNormalClosure, "")
	}()

	p.hub.Dispatcher().NotifyPresence(ctx, identity.ID, domain.StatusOnline, p.hub.SubscribedChats(identity.ID))

	for {
		data, err := t.ReadFrame()
		if err != nil {
			p.logReadError(ctx, s, err)
			return
		}
		p.handleFrame(ctx, s, data)
	}
}

func (p *ProtocolHandler) logReadError(ctx context.Context, s *session, err error) {
	reason := "closed"
	if gorillaWS.IsUnexpectedCloseError(err, gorillaWS.CloseNormalClosure, gorillaWS.CloseGoingAway, gorillaWS.CloseNoStatusReceived) {
		reason = "read_error"
		p.log.WithFields(ctx, logger.Fields{
			"user_id": s.identity.ID.String(),
			"conn_id": s.conn.ID(),
			"error":   err.Error(),
			"action":  "ws_read_error",
		}).Warn("websocket read error")
	}
	metrics.ChatWebSocketDisconnections.WithLabelValues(reason).Inc()
}

func (p *ProtocolHandler) handleFrame(ctx context.Context, s *session, data []byte) {
	start := time.Now()

	if !s.limiter.Allow() {
		metrics.RateLimitBlocked.WithLabelValues("/ws", "frames").Inc()
		p.dropFrame(ctx, s, commonerrors.ErrRateLimited)
		return
	}

	frame, err := p.decoder.Decode(data)
	if err != nil {
		p.dropFrame(ctx, s, err)
		return
	}

	metrics.ChatWebSocketMessagesTotal.WithLabelValues(frame.Type.String()).Inc()
	defer func() {
		metrics.ChatWebSocketFrameProcessingDurationSeconds.WithLabelValues(frame.Type.String()).Observe(time.Since(start).Seconds())
	}()

	dispatcher := p.hub.Dispatcher()
	user := s.identity.ID

	switch frame.Type {
	case TypeSubscribeChat:
		if err := p.hub.Subscribe(user, frame.ChatID); err != nil {
			p.dropFrame(ctx, s, err)
			return
		}
		dispatcher.SendToUser(ctx, user, ChatOnlineUsersEvent{
			Type:        TypeChatOnlineUsers,
			ChatID:      frame.ChatID,
			OnlineUsers: p.hub.OnlineParticipantsOf(frame.ChatID),
		})

	case TypeUnsubscribeChat:
		p.hub.Unsubscribe(user, frame.ChatID)

	case TypeSendMessage:
		p.sendMessage(ctx, s, frame)

	case TypeTyping:
		dispatcher.BroadcastToChat(ctx, frame.ChatID, TypingEvent{
			Type:   TypeTyping,
			ChatID: frame.ChatID,
			UserID: user,
		}, &user)

	case TypeNewChat:
		dispatcher.SendToUser(ctx, frame.ReceiverID, NewChatEvent{
			Type:       TypeNewChat,
			ChatID:     frame.ChatID,
			SenderUser: summaryOf(s.identity),
		})
	}
}

func (p *ProtocolHandler) sendMessage(ctx context.Context, s *session, frame Frame) {
	storeCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	stored, err := p.store.Append(storeCtx, frame.ChatID, s.identity.ID, frame.Text)
	cancel()

	if err != nil {
		domainErr, ok := commonerrors.AsDomainError(err)
		if !ok {
			domainErr = commonerrors.ErrMessageStoreFailed.WithCause(err)
		}
		metrics.ChatWebSocketErrors.WithLabelValues("store_failed").Inc()
		p.log.WithFields(ctx, logger.Fields{
			"user_id": s.identity.ID.String(),
			"chat_id": frame.ChatID.String(),
			"error":   err.Error(),
			"action":  "ws_store_failed",
		}).Error("message store append failed")

		chat := frame.ChatID
		p.hub.Dispatcher().SendToConnection(ctx, s.identity.ID, s.conn, errorEvent(domainErr, &chat))
		return
	}

	sender := s.identity.ID
	p.hub.Dispatcher().BroadcastToChat(ctx, frame.ChatID, newMessageEvent(stored, frame.ChatID, s.identity, frame.Text), &sender)
}

func (p *ProtocolHandler) dropFrame(ctx context.Context, s *session, err error) {
	code := "protocol_error"
	if de, ok := commonerrors.AsDomainError(err); ok {
		code = de.Code()
	}
	metrics.ChatWebSocketErrors.WithLabelValues(code).Inc()

	entry := p.log.WithFields(ctx, logger.Fields{
		"user_id": s.identity.ID.String(),
		"conn_id": s.conn.ID(),
		"error":   err.Error(),
		"action":  "ws_frame_dropped",
	})
	if errors.Is(err, commonerrors.ErrRateLimited) {
		entry.Debug("websocket frame dropped")
		return
	}
	entry.Warn("websocket frame dropped")
}
