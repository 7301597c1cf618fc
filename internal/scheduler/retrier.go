package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/logger"
)

// ErroredRetrier is the part of the registry the auto retrier drives.
type ErroredRetrier interface {
	RetryErrored(ctx context.Context) int
}

// AutoRetrier periodically restarts sources stuck in ERROR. It also serves
// manual triggers; with a zero interval only manual triggers run.
type AutoRetrier struct {
	target        ErroredRetrier
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewAutoRetrier creates a retrier. manualTrigger may be nil.
func NewAutoRetrier(
	target ErroredRetrier,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *AutoRetrier {
	return &AutoRetrier{
		target:        target,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start launches the retry loop.
func (ar *AutoRetrier) Start(ctx context.Context) error {
	var tick <-chan time.Time
	var ticker *time.Ticker
	if ar.interval > 0 {
		ticker = time.NewTicker(ar.interval)
		tick = ticker.C
		ar.logger.Info("auto retry enabled", logger.Duration("interval", ar.interval))
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				ar.Retry(ctx)
			case <-ar.manualTrigger:
				ar.logger.Info("manual retry triggered")
				ar.Retry(ctx)
			case <-ar.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the retrier
func (ar *AutoRetrier) Stop() {
	close(ar.stopCh)
}

// Retry restarts every errored source once and returns how many were retried.
func (ar *AutoRetrier) Retry(ctx context.Context) int {
	n := ar.target.RetryErrored(ctx)
	if n > 0 {
		ar.logger.Info("retried errored sources", logger.Int("count", n))
	} else {
		ar.logger.Debug("no errored sources to retry")
	}
	return n
}
