package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})

	if b.config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", b.config.MaxConcurrent)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() #1 error = %v", err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() #2 error = %v", err)
	}

	m := b.Metrics()
	if m.Active != 2 {
		t.Errorf("Active = %d, want 2", m.Active)
	}
	if m.Available != 0 {
		t.Errorf("Available = %d, want 0", m.Available)
	}
	if m.Utilization != 1.0 {
		t.Errorf("Utilization = %f, want 1.0", m.Utilization)
	}

	b.Release()
	b.Release()
	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active after release = %d, want 0", got)
	}
}

func TestBulkhead_WaiterBlocksUntilRelease(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := b.Acquire(ctx); err != nil {
			t.Errorf("queued Acquire() error = %v", err)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire() should block while the slot is held")
	case <-time.After(30 * time.Millisecond):
	}

	b.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("queued Acquire() not granted after Release()")
	}

	// The slot transferred: still one active.
	if got := b.Metrics().Active; got != 1 {
		t.Errorf("Active = %d, want 1", got)
	}
}

func TestBulkhead_FIFOOrder(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	ready := make(chan struct{}, 3)

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ready <- struct{}{}
			if err := b.Acquire(ctx); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			b.Release()
		}(i)
		// Let each goroutine enqueue before starting the next so the
		// arrival order is deterministic.
		<-ready
		time.Sleep(10 * time.Millisecond)
	}

	if got := b.Metrics().Queued; got != 3 {
		t.Fatalf("Queued = %d, want 3", got)
	}

	b.Release()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("grant order = %v, want %v", order, want)
		}
	}
}

func TestBulkhead_MaxWaitTimeout(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	err := b.Acquire(ctx)
	var fullErr *BulkheadFullError
	if !errors.As(err, &fullErr) {
		t.Fatalf("Acquire() error = %v, want *BulkheadFullError", err)
	}
	if !errors.Is(err, ErrBulkheadFull) {
		t.Error("BulkheadFullError should match ErrBulkheadFull")
	}
	if fullErr.MaxConcurrent != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", fullErr.MaxConcurrent)
	}
	if got := b.Metrics().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestBulkhead_MaxQueueRejection(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxQueue: 1})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	go func() {
		if err := b.Acquire(ctx); err == nil {
			b.Release()
		}
	}()
	time.Sleep(20 * time.Millisecond)

	// Queue is full: immediate rejection, no waiting.
	start := time.Now()
	err := b.Acquire(ctx)
	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("Acquire() error = %v, want ErrBulkheadFull", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("queue-bound rejection should not block")
	}

	b.Release() // hand the slot to the queued waiter
}

func TestBulkhead_ContextCancellation(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled Acquire() did not return")
	}

	// The cancelled waiter left the queue; Release frees the slot.
	b.Release()
	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestBulkhead_Execute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	result, err := b.Execute(ctx, succeedingOp("done"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want done", result)
	}

	// The slot is released on the error path too.
	testErr := errors.New("boom")
	if _, err := b.Execute(ctx, failingOp(testErr)); err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestBulkhead_ConcurrencyNeverExceedsLimit(t *testing.T) {
	const limit = 3
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: limit})
	ctx := context.Background()

	var mu sync.Mutex
	current, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Execute(ctx, func(ctx context.Context) (any, error) {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Errorf("peak concurrency = %d, want <= %d", peak, limit)
	}
	if got := b.Metrics().MaxActive; got > limit {
		t.Errorf("MaxActive = %d, want <= %d", got, limit)
	}
}
