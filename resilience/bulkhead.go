package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrently active operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time a caller waits in the queue for a slot.
	// Default: 0 (wait until cancelled)
	MaxWait time.Duration

	// MaxQueue bounds the waiter queue. Callers arriving past the bound
	// are rejected immediately.
	// Default: 0 (unbounded)
	MaxQueue int
}

// Bulkhead limits concurrent operations. Callers that cannot be admitted
// immediately wait in a strict FIFO queue: a released slot always goes to
// the longest-waiting caller, so no more than MaxConcurrent operations are
// ever active at once.
type Bulkhead struct {
	config BulkheadConfig

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
	waiters   []chan struct{}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{config: config}
}

// Acquire claims a slot, waiting in FIFO order if the bulkhead is saturated.
// It returns a *BulkheadFullError when the queue bound or MaxWait is
// exceeded, or the context error if the caller is cancelled while waiting.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()

	// Immediate admission only when nobody is already queued, otherwise a
	// late arrival would jump the FIFO line.
	if b.active < b.config.MaxConcurrent && len(b.waiters) == 0 {
		b.admitLocked()
		b.mu.Unlock()
		return nil
	}

	if b.config.MaxQueue > 0 && len(b.waiters) >= b.config.MaxQueue {
		b.rejected++
		err := &BulkheadFullError{
			Active:        b.active,
			Queued:        len(b.waiters),
			MaxConcurrent: b.config.MaxConcurrent,
		}
		b.mu.Unlock()
		return err
	}

	ready := make(chan struct{})
	b.waiters = append(b.waiters, ready)
	b.mu.Unlock()

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ready:
		// Release transferred its slot to us.
		return nil

	case <-timeout:
		if b.abandon(ready, true) {
			b.mu.Lock()
			err := &BulkheadFullError{
				Active:        b.active,
				Queued:        len(b.waiters),
				MaxConcurrent: b.config.MaxConcurrent,
			}
			b.mu.Unlock()
			return err
		}
		// Lost the race: a slot was granted while timing out. Use it.
		return nil

	case <-ctx.Done():
		if !b.abandon(ready, false) {
			// Granted concurrently with cancellation; hand the slot back.
			b.Release()
		}
		return ctx.Err()
	}
}

// abandon removes ready from the waiter queue. It returns false when the
// waiter was already granted a slot.
func (b *Bulkhead) abandon(ready chan struct{}, countRejected bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, w := range b.waiters {
		if w == ready {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			if countRejected {
				b.rejected++
			}
			return true
		}
	}
	return false
}

// Release frees a slot. If waiters are queued the slot transfers to the
// head of the queue instead of becoming available.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.waiters) > 0 {
		ready := b.waiters[0]
		b.waiters = b.waiters[1:]
		close(ready)
		return
	}

	if b.active > 0 {
		b.active--
	}
}

func (b *Bulkhead) admitLocked() {
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
}

// Execute runs the operation within the bulkhead. The slot is released on
// every exit path.
func (b *Bulkhead) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.Acquire(ctx); err != nil {
		return nil, err
	}
	defer b.Release()

	return op(ctx)
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		Queued:        len(b.waiters),
		MaxActive:     b.maxActive,
		MaxConcurrent: b.config.MaxConcurrent,
		Available:     b.config.MaxConcurrent - b.active,
		Utilization:   float64(b.active) / float64(b.config.MaxConcurrent),
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	Queued        int
	MaxActive     int
	MaxConcurrent int
	Available     int
	Utilization   float64
	Rejected      int64
}
