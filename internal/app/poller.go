package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/state"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// trigger is satisfied by *reconcile.Driver.
type trigger interface {
	Trigger()
}

// StartPoller launches the safety poll. Each tick asks the driver for a
// refresh; push events normally make this redundant, but a dropped event
// or a closed channel is caught within one interval. While refreshes keep
// failing the interval backs off. It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, driver trigger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			driver.Trigger()

			failures := store.Snapshot().ConsecutiveFailures
			next := calculateBackoff(failures, interval)
			if failures > 0 {
				logger.Debug("poll backing off", zap.Int("failures", failures), zap.Duration("next", next))
			}
			timer.Reset(next)
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
