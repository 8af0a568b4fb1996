package http

import (
	"net/http"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/constants"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/httpmetrics"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
)

// BuildBaseHandler wraps handler with the middleware every REST route shares.
// The WebSocket endpoint is mounted beside it so hijacking is not obstructed.
func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	collector := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)

	return recovery(TraceIDMiddleware(maxRequestSize(collector.Wrap(handler))))
}
