package db

import (
	"fmt"
	"time"

	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

// HandleExecError records timing for a statement against table and wraps any failure.
func HandleExecError(err error, operation, table string, startTime time.Time) error {
	metrics.DBQueryDurationSeconds.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())

	if err == nil {
		return nil
	}
	metrics.DBQueryErrors.WithLabelValues(operation, table, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}
