package watcher

import (
	"context"
	"sync"
)

// queueItem carries either a raw event or a per-event error from the
// watch primitive.
type queueItem struct {
	event RawEvent
	err   error
}

// eventQueue is an unbounded queue with one producer (the subscription's
// forwarder goroutine) and one consumer (the calling thread). It is the
// only state shared between the notification context and the caller.
// Pushes never block, so the watch primitive is never back-pressured.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queueItem
	closed bool
}

func newEventQueue() *eventQueue {
	q := new(eventQueue)
	q.cond = sync.NewCond(&q.mu)

	return q
}

// push appends an item and wakes a pending recv. Items pushed after close
// are dropped.
func (q *eventQueue) push(it queueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.items = append(q.items, it)
	q.cond.Signal()
}

// close marks the stream as permanently closed. Buffered items remain
// receivable; recv reports ErrChannelClosed only once the queue drains.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// recv blocks until an item is available, the queue is closed and drained,
// or the context is canceled.
func (q *eventQueue) recv(ctx context.Context) (queueItem, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]

			return it, nil
		}

		if q.closed {
			return queueItem{}, ErrChannelClosed
		}

		if err := ctx.Err(); err != nil {
			return queueItem{}, err
		}

		q.cond.Wait()
	}
}

// tryRecv pops one buffered item without blocking. The error is
// ErrChannelClosed when the queue is closed and drained.
func (q *eventQueue) tryRecv() (queueItem, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]

		return it, true, nil
	}

	if q.closed {
		return queueItem{}, false, ErrChannelClosed
	}

	return queueItem{}, false, nil
}
