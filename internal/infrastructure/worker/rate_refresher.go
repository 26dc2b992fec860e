package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// DefaultRefreshInterval matches the default rate cache TTL
const DefaultRefreshInterval = time.Hour

// RateRefresher is the part of the rate cache the refresher drives
type RateRefresher interface {
	Bases() []entity.Currency
	Refresh(ctx context.Context, base entity.Currency) error
}

// RateRefreshWorker keeps cached exchange-rate tables warm so request
// paths rarely wait on the provider
type RateRefreshWorker struct {
	cache    RateRefresher
	warm     []entity.Currency
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRateRefreshWorker creates a refresher. warm lists bases fetched even
// before anything has been cached for them.
func NewRateRefreshWorker(cache RateRefresher, interval time.Duration, warm []entity.Currency, logger *zap.Logger) *RateRefreshWorker {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RateRefreshWorker{
		cache:    cache,
		warm:     warm,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *RateRefreshWorker) Name() string {
	return "RateRefreshWorker"
}

// Start launches the refresh loop
func (w *RateRefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("rate refresher is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("RateRefreshWorker started", zap.Duration("interval", w.interval))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for it to exit
func (w *RateRefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("RateRefreshWorker stopped")
	return nil
}

func (w *RateRefreshWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

// refreshAll refetches every cached base plus the warm list. Failures are
// logged; the cache keeps serving its previous table.
func (w *RateRefreshWorker) refreshAll(ctx context.Context) {
	bases := w.targets()
	failed := 0

	for _, base := range bases {
		if ctx.Err() != nil {
			return
		}
		if err := w.cache.Refresh(ctx, base); err != nil {
			failed++
			w.logger.Warn("Failed to refresh exchange rates",
				zap.String("base", string(base)),
				zap.Error(err))
		}
	}

	w.logger.Debug("Exchange rates refreshed",
		zap.Int("bases", len(bases)),
		zap.Int("failed", failed))
}

func (w *RateRefreshWorker) targets() []entity.Currency {
	seen := make(map[entity.Currency]bool)
	var out []entity.Currency
	for _, list := range [][]entity.Currency{w.warm, w.cache.Bases()} {
		for _, base := range list {
			if !seen[base] {
				seen[base] = true
				out = append(out, base)
			}
		}
	}
	return out
}
