package dispatch

import "sync"

// Queue delivers pushed values one at a time in push order. The goroutine
// that calls Drain while the queue is idle becomes the drainer and keeps
// delivering until nothing is pending. Drain calls made while a drain is
// in progress, including calls made from inside deliver, return at once
// and leave their values to the running drainer.
//
// Callers that need deliveries to follow commit order must Push while
// still holding the lock that guards the commit.
type Queue[T any] struct {
	mu       sync.Mutex
	pending  []T
	draining bool
}

// Push appends v to the pending values
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.pending = append(q.pending, v)
	q.mu.Unlock()
}

// Drain delivers pending values unless another drain is already running.
// If deliver panics the queue is released and the remaining values are
// picked up by the next Drain.
func (q *Queue[T]) Drain(deliver func(T)) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			// released under the same lock that saw the queue empty so a
			// concurrent Push always finds a drainer or drains itself
			q.draining = false
			q.mu.Unlock()
			return
		}
		var zero T
		v := q.pending[0]
		q.pending[0] = zero
		q.pending = q.pending[1:]
		q.mu.Unlock()

		deliver(v)
	}
}

// Len returns the number of values waiting for delivery
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
