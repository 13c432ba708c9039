package journal

import "sync"

// Queue is an unbounded FIFO that doubles its ring when it fills past
// three quarters. Push never blocks, so it can be called while the exchange
// lock is held.
type Queue[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int
	size   int
	closed bool

	// Signalled (without blocking) after every successful Push.
	ready chan struct{}

	pushed  int64
	drained int64
	grows   int
}

// NewQueue creates a queue with room for capacity items before its first grow.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 2 {
		capacity = 2
	}
	return &Queue[T]{
		ring:  make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends item. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if (q.size+1)*4 > len(q.ring)*3 {
		q.growLocked()
	}
	q.ring[(q.head+q.size)%len(q.ring)] = item
	q.size++
	q.pushed++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready fires after items have been pushed. A single signal may cover many items.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes up to max items (all of them when max <= 0) in push order.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	var zero T
	out := make([]T, n)
	for i := range out {
		out[i] = q.ring[q.head]
		q.ring[q.head] = zero
		q.head = (q.head + 1) % len(q.ring)
	}
	q.size -= n
	q.drained += int64(n)
	return out
}

// Close stops accepting items. Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Drained  int64
	Grows    int
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.size,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Drained:  q.drained,
		Grows:    q.grows,
	}
}

// growLocked doubles the ring and unwraps it so head is at 0.
func (q *Queue[T]) growLocked() {
	next := make([]T, len(q.ring)*2)
	n := copy(next, q.ring[q.head:])
	if n < q.size {
		copy(next[n:], q.ring[:q.size-n])
	}
	q.ring = next
	q.head = 0
	q.grows++
}
