package recovery

import (
	"context"
	"errors"
	"testing"
)

func TestManager_QueueStrategy(t *testing.T) {
	m := NewManager(Config{
		Strategies: []Strategy{StrategyQueue},
		QueueName:  "deferred-writes",
	})

	result, err := m.Execute(context.Background(), "write", failingOp(errors.New("store down")))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Strategy != StrategyQueue {
		t.Errorf("Strategy = %v, want queue-for-later", result.Strategy)
	}

	receipt, ok := result.Value.(Receipt)
	if !ok {
		t.Fatalf("Value = %T, want Receipt", result.Value)
	}
	if receipt.ID == "" {
		t.Error("Receipt.ID should be populated")
	}
	if receipt.Queue != "deferred-writes" {
		t.Errorf("Receipt.Queue = %q, want deferred-writes", receipt.Queue)
	}
	if receipt.Operation != "write" {
		t.Errorf("Receipt.Operation = %q, want write", receipt.Operation)
	}
	if receipt.QueuedAt.IsZero() {
		t.Error("Receipt.QueuedAt should be set")
	}

	if got := m.QueueDepth("deferred-writes"); got != 1 {
		t.Errorf("QueueDepth = %d, want 1", got)
	}
}

func TestManager_ProcessQueue(t *testing.T) {
	m := NewManager(Config{Strategies: []Strategy{StrategyQueue}})

	// One operation that will succeed on replay, one that stays broken.
	calls := 0
	_, _ = m.Execute(context.Background(), "flaky", func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("first call fails")
		}
		return "ok", nil
	})
	permanentErr := errors.New("still broken")
	_, _ = m.Execute(context.Background(), "broken", failingOp(permanentErr))

	results := m.ProcessQueue(context.Background(), "default")
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v, want nil (replay succeeded)", results[0].Err)
	}
	if results[1].Err != permanentErr {
		t.Errorf("results[1].Err = %v, want %v", results[1].Err, permanentErr)
	}

	// At-most-once: the queue is empty even though one replay failed.
	if got := m.QueueDepth("default"); got != 0 {
		t.Errorf("QueueDepth = %d, want 0 after drain", got)
	}
	if again := m.ProcessQueue(context.Background(), "default"); again != nil {
		t.Errorf("second drain = %v, want nil", again)
	}
}

func TestManager_QueuesAreIndependent(t *testing.T) {
	m := NewManager(Config{Strategies: []Strategy{StrategyQueue}, QueueName: "alpha"})

	_, _ = m.Execute(context.Background(), "op-1", failingOp(errors.New("down")))

	if got := m.QueueDepth("alpha"); got != 1 {
		t.Errorf("QueueDepth(alpha) = %d, want 1", got)
	}
	if got := m.QueueDepth("beta"); got != 0 {
		t.Errorf("QueueDepth(beta) = %d, want 0", got)
	}
	if results := m.ProcessQueue(context.Background(), "beta"); results != nil {
		t.Errorf("ProcessQueue(beta) = %v, want nil", results)
	}
}
