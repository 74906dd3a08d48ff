package session

import (
	"context"
	"time"
)

// StartSweepWorker runs a background goroutine that periodically ends
// inactive sessions and purges old ENDED ones until ctx is cancelled.
func (m *Manager) StartSweepWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.logger.Info("sweep worker started", "interval", interval, "timeout", m.timeout, "retention", m.retention)

		for {
			select {
			case <-ticker.C:
				m.sweepOnce(ctx)
			case <-ctx.Done():
				m.logger.Info("sweep worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) sweepOnce(ctx context.Context) {
	swept, purged, err := m.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			m.logger.Debug("sweep worker: context canceled during sweep", "error", err)
			return
		}
		m.logger.Error("sweep worker failed", "error", err)
		return
	}
	if swept > 0 || purged > 0 {
		m.logger.Info("sweep worker cleanup completed", "ended", swept, "purged", purged)
	}
}
