package http

import (
	"context"
	"net/http"
	"time"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
)

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

func HealthHandler(log *logger.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WithFields(ctx, logger.Fields{
					"dependency": name,
					"error":      err.Error(),
					"action":     "health_check_failed",
				}).Warn("health check failed")
				body[name] = "unavailable"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}

		WriteJSON(w, status, body)
	}
}
