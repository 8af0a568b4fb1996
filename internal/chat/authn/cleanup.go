package authn

import (
	"context"
	"time"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartRevokedTokenCleanup purges expired deny-list entries every interval until ctx is done.
func StartRevokedTokenCleanup(ctx context.Context, repo ExpiredDeleter, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Errorf("revoked token cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				metrics.RevokedTokensCleanupDeleted.Add(float64(deleted))
				log.Infof("revoked token cleanup: deleted %d expired tokens", deleted)
			}
		}
	}
}
