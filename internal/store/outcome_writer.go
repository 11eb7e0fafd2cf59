package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/venue-gateway/internal/routing"
)

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

// OutcomeWriter batches execution outcomes into routing_outcomes.
type OutcomeWriter struct {
	cfg    WriterConfig
	db     DB
	logger *slog.Logger

	batch   []routing.Outcome
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewOutcomeWriter creates a writer. Call Start before writing.
func NewOutcomeWriter(cfg WriterConfig, db DB, logger *slog.Logger) *OutcomeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &OutcomeWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]routing.Outcome, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// Start begins the periodic flush loop.
func (w *OutcomeWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("outcome writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop ends the flush loop and writes whatever is still queued.
func (w *OutcomeWriter) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("outcome writer stop timed out")
	}

	w.flush(ctx)
	w.logger.Info("outcome writer stopped")
	return nil
}

// Write queues an outcome, flushing when the batch is full.
func (w *OutcomeWriter) Write(o routing.Outcome) {
	w.batchMu.Lock()
	w.batch = append(w.batch, o)
	full := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if full {
		w.flush(w.ctx)
	}
}

// Pending returns the number of queued outcomes.
func (w *OutcomeWriter) Pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}

// Stats returns current metrics.
func (w *OutcomeWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *OutcomeWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *OutcomeWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]routing.Outcome, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("outcome batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.metrics.Dropped += int64(len(batch))
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed outcomes",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (w *OutcomeWriter) batchInsert(ctx context.Context, outcomes []routing.Outcome) error {
	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(`
			INSERT INTO routing_outcomes (decision_id, exchange_id, filled_quantity, average_price, success, error, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, outcomeArgs(o)...)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range outcomes {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
