package worker

import (
	"context"
	"time"

	"fintrack/internal/log"
)

// Purger removes expired auth state.
type Purger interface {
	Purge(ctx context.Context) error
}

// RunPurge calls p every interval until ctx is done.
func RunPurge(ctx context.Context, p Purger, interval time.Duration, logger *log.Logger) {
	logger = logger.WithComponent(log.ComponentWorker)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Purge(ctx); err != nil && ctx.Err() == nil {
				logger.WarnContext(ctx, "Purging expired auth state failed", log.FieldError, err)
			}
		}
	}
}
