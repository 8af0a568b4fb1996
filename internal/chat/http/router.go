package http

import (
	"net/http"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/websocket"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/constants"
	commonhttp "github.com/AlibekovAA/chat-presence-hub/internal/common/http"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/jwtverify"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

type Options struct {
	Hub            *websocket.Hub
	Protocol       *websocket.ProtocolHandler
	Verifier       *jwtverify.Verifier
	Client         websocket.ClientConfig
	HealthChecks   map[string]commonhttp.HealthCheck
	UpgradeLimiter *commonhttp.RateLimiter
}

type Handler struct {
	hub      *websocket.Hub
	protocol *websocket.ProtocolHandler
	client   websocket.ClientConfig
	upgrader gorillaWS.Upgrader
	errors   *commonhttp.ErrorHandler
	log      *logger.Logger
}

type onlineUsersResponse struct {
	ChatID      domain.ChatID   `json:"chat_id"`
	OnlineUsers []domain.UserID `json:"online_users"`
}

// NewHandler mounts the WebSocket endpoint beside the REST routes; only the latter
// go through the shared middleware chain.
func NewHandler(opts Options, log *logger.Logger) http.Handler {
	h := &Handler{
		hub:      opts.Hub,
		protocol: opts.Protocol,
		client:   opts.Client,
		errors:   commonhttp.NewErrorHandler(log),
		log:      log,
		upgrader: gorillaWS.Upgrader{
			ReadBufferSize:  constants.WebSocketReadBufferSize,
			WriteBufferSize: constants.WebSocketWriteBufferSize,
			CheckOrigin:     sameOrigin,
		},
	}

	jwtMw := jwtverify.Middleware(opts.Verifier, log)

	restMux := http.NewServeMux()
	restMux.Handle("GET /api/chats/{chat_id}/online", jwtMw(http.HandlerFunc(h.onlineUsers)))
	restMux.HandleFunc("/health", commonhttp.HealthHandler(log, opts.HealthChecks))
	restMux.Handle("GET /metrics", promhttp.Handler())

	var ws http.Handler = http.HandlerFunc(h.handleWebSocket)
	if opts.UpgradeLimiter != nil {
		ws = opts.UpgradeLimiter.Middleware("ws_upgrade")(ws)
	}

	mainMux := http.NewServeMux()
	mainMux.Handle("/ws", commonhttp.RecoveryMiddleware(log)(commonhttp.TraceIDMiddleware(ws)))
	mainMux.Handle("/", commonhttp.BuildBaseHandler(log, restMux))

	return mainMux
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return origin == "http://"+host || origin == "https://"+host
}

func (h *Handler) onlineUsers(w http.ResponseWriter, r *http.Request) {
	chatID, err := commonhttp.ParseUUID(r.PathValue("chat_id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	online := h.hub.OnlineParticipantsOf(chatID)
	if online == nil {
		online = []domain.UserID{}
	}

	commonhttp.WriteJSON(w, http.StatusOK, onlineUsersResponse{
		ChatID:      chatID,
		OnlineUsers: online,
	})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credential := jwtverify.CredentialFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.ChatWebSocketConnectionsRejected.WithLabelValues("upgrade").Inc()
		h.log.WithFields(ctx, logger.Fields{
			"remote": commonhttp.GetClientIP(r),
			"action": "ws_upgrade_failed",
		}).Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(conn, h.client, h.log)
	client.Start()

	h.protocol.Serve(ctx, client, credential)
}
