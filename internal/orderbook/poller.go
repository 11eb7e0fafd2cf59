package orderbook

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval    time.Duration // Poll interval (default: 5s)
	Concurrency int           // Max concurrent fetches (default: 16)
	Timeout     time.Duration // Per-fetch timeout (default: 3s)
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:    5 * time.Second,
		Concurrency: 16,
		Timeout:     3 * time.Second,
	}
}

// PollerStats counts fetch outcomes since start.
type PollerStats struct {
	Tracked int
	Cycles  int64
	Fetched int64
	Errors  int64
}

// Poller periodically refreshes tracked pairs into a Cache. Failed fetches
// leave the previous entry in place.
type Poller struct {
	cfg    PollerConfig
	cache  *Cache
	source Source
	logger *slog.Logger

	mu      sync.RWMutex
	tracked map[Key]struct{}

	cycles  atomic.Int64
	fetched atomic.Int64
	errors  atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig, cache *Cache, source Source, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollerConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollerConfig().Timeout
	}
	return &Poller{
		cfg:     cfg,
		cache:   cache,
		source:  source,
		logger:  logger,
		tracked: make(map[Key]struct{}),
	}
}

// Track adds a pair to the poll set.
func (p *Poller) Track(exchangeID, assetID string) {
	p.mu.Lock()
	p.tracked[Key{exchangeID, assetID}] = struct{}{}
	p.mu.Unlock()
}

// Untrack removes a pair. Its cached entry is kept.
func (p *Poller) Untrack(exchangeID, assetID string) {
	p.mu.Lock()
	delete(p.tracked, Key{exchangeID, assetID})
	p.mu.Unlock()
}

func (p *Poller) trackedKeys() []Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]Key, 0, len(p.tracked))
	for k := range p.tracked {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns poll statistics.
func (p *Poller) Stats() PollerStats {
	p.mu.RLock()
	tracked := len(p.tracked)
	p.mu.RUnlock()
	return PollerStats{
		Tracked: tracked,
		Cycles:  p.cycles.Load(),
		Fetched: p.fetched.Load(),
		Errors:  p.errors.Load(),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("order book poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("order book poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce refreshes every tracked pair once and waits for the cycle to finish.
func (p *Poller) PollOnce(ctx context.Context) {
	start := time.Now()

	keys := p.trackedKeys()
	if len(keys) == 0 {
		p.logger.Debug("no order books to poll")
		return
	}

	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))
	var g errgroup.Group
	var fetched, failed atomic.Int64

	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()

			if _, err := p.cache.Refresh(fetchCtx, p.source, key.ExchangeID, key.AssetID); err != nil {
				p.logger.Warn("failed to poll order book",
					"exchange", key.ExchangeID,
					"asset", key.AssetID,
					"err", err,
				)
				failed.Add(1)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	g.Wait()

	p.cycles.Add(1)
	p.fetched.Add(fetched.Load())
	p.errors.Add(failed.Load())

	p.logger.Debug("poll cycle complete",
		"pairs", len(keys),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}
