package listener

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of completed request/response pairs. Any number
// of connections push; the application pops.
type queue struct {
	mu     sync.Mutex
	items  []*Context
	closed bool
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends c and never blocks. It reports false once the queue is closed.
func (q *queue) push(c *Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, c)
	q.signal()
	return true
}

// pop waits for the oldest pair, the queue closing, or ctx ending.
func (q *queue) pop(ctx context.Context) (*Context, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return c, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrStreamTerminated
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close terminates the queue and returns the pairs nobody popped.
func (q *queue) close() []*Context {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ready)
	left := q.items
	q.items = nil
	return left
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// signal must be called with mu held.
func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
