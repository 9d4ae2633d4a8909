package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/faultops/resilience"
)

// Receipt acknowledges that a failed operation was deferred. It stands in
// for the real result; the work itself runs when the queue is drained.
type Receipt struct {
	ID        string
	Queue     string
	Operation string
	QueuedAt  time.Time
}

type queuedOp struct {
	receipt Receipt
	op      resilience.Operation
}

// queueSet holds the named deferred queues owned by a Manager.
type queueSet struct {
	mu     sync.Mutex
	queues map[string][]queuedOp
}

func newQueueSet() *queueSet {
	return &queueSet{queues: make(map[string][]queuedOp)}
}

func (qs *queueSet) enqueue(queue, operation string, op resilience.Operation) Receipt {
	receipt := Receipt{
		ID:        uuid.NewString(),
		Queue:     queue,
		Operation: operation,
		QueuedAt:  time.Now(),
	}

	qs.mu.Lock()
	qs.queues[queue] = append(qs.queues[queue], queuedOp{receipt: receipt, op: op})
	qs.mu.Unlock()

	return receipt
}

func (qs *queueSet) drain(queue string) []queuedOp {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	ops := qs.queues[queue]
	delete(qs.queues, queue)
	return ops
}

func (qs *queueSet) depth(queue string) int {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return len(qs.queues[queue])
}

// QueueResult reports one drained operation's outcome.
type QueueResult struct {
	Receipt Receipt
	Err     error
}

// QueueDepth returns the number of operations waiting on the named queue.
func (m *Manager) QueueDepth(queue string) int {
	return m.queues.depth(queue)
}

// ProcessQueue drains the named queue, executing each deferred operation
// exactly once. Delivery is at most once: failures are reported in the
// results, never re-queued.
func (m *Manager) ProcessQueue(ctx context.Context, queue string) []QueueResult {
	ops := m.queues.drain(queue)
	if len(ops) == 0 {
		return nil
	}

	results := make([]QueueResult, 0, len(ops))
	for _, qo := range ops {
		_, err := qo.op(ctx)
		results = append(results, QueueResult{Receipt: qo.receipt, Err: err})
	}
	return results
}
