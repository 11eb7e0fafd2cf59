package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBusStarted is returned when Start is called twice.
var ErrBusStarted = errors.New("alert bus already started")

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans alerts out to subscribers. It implements Emitter.
type Bus struct {
	logger *slog.Logger
	queue  *queue[Alert]
	now    func() time.Time

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64

	startMu sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// NewBus creates a bus. Alerts emitted before Start are held until it runs.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		queue:  newQueue[Alert](64),
		now:    time.Now,
	}
}

// Subscribe registers h and returns a function that removes it.
// Handlers run on the dispatcher goroutine and should not block for long.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit queues a for delivery and returns immediately.
func (b *Bus) Emit(a Alert) {
	if a.At.IsZero() {
		a.At = b.now().UTC()
	}
	if !b.queue.push(a) {
		b.logger.Debug("alert dropped after bus stop", "type", a.Type, "exchange", a.ExchangeID)
	}
}

// Start launches the dispatcher.
func (b *Bus) Start(ctx context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return ErrBusStarted
	}
	b.started = true

	// Handlers keep running while the queue drains on Stop.
	deliverCtx := context.WithoutCancel(ctx)

	b.wg.Add(1)
	go b.dispatch(deliverCtx)

	b.logger.Info("alert bus started")
	return nil
}

// Stop closes the queue, waits for queued alerts to be delivered and
// returns early if ctx expires first.
func (b *Bus) Stop(ctx context.Context) error {
	b.queue.close()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		st := b.queue.stats()
		b.logger.Info("alert bus stopped", "delivered", st.Popped)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns queue statistics.
func (b *Bus) Stats() QueueStats {
	return b.queue.stats()
}

func (b *Bus) dispatch(ctx context.Context) {
	defer b.wg.Done()

	for {
		a, ok := b.queue.pop()
		if !ok {
			return
		}

		b.mu.RLock()
		subs := make([]subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.RUnlock()

		for _, s := range subs {
			b.deliver(ctx, s.handler, a)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, a Alert) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("alert handler panicked", "type", a.Type, "panic", r)
		}
	}()
	h.HandleAlert(ctx, a)
}
