// File: hub/outbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded per-connection FIFO of encoded frames waiting to be written.

package hub

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/canvasrelay/config"
)

// outbox is a bounded FIFO backed by a ring-buffer queue. Producers are
// broadcasting readers; the single consumer is the connection's writer.
type outbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	limit  int
	policy config.OverflowPolicy
	closed bool
	wake   chan struct{}
}

func newOutbox(limit int, policy config.OverflowPolicy) *outbox {
	return &outbox{
		q:      queue.New(),
		limit:  limit,
		policy: policy,
		wake:   make(chan struct{}, 1),
	}
}

// push appends frame. Under drop_oldest a full queue evicts its head and
// evicted is true. Under close a full queue rejects the frame with
// ErrQueueFull. A closed outbox rejects with ErrConnClosed.
func (o *outbox) push(frame []byte) (evicted bool, err error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false, ErrConnClosed
	}
	if o.q.Length() >= o.limit {
		if o.policy != config.OverflowDropOldest {
			o.mu.Unlock()
			return false, ErrQueueFull
		}
		o.q.Remove()
		evicted = true
	}
	o.q.Add(frame)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return evicted, nil
}

// pop removes the head frame, if any.
func (o *outbox) pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.q.Length() == 0 {
		return nil, false
	}
	return o.q.Remove().([]byte), true
}

// size reports the number of queued frames.
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.q.Length()
}

// close rejects further pushes and discards what is queued, returning the
// number of discarded frames.
func (o *outbox) close() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0
	}
	o.closed = true
	n := o.q.Length()
	for o.q.Length() > 0 {
		o.q.Remove()
	}
	return n
}
