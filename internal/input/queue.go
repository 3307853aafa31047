package input

import (
	"sync"
	"time"
)

// Queue is the session's unbounded inbound byte queue. The SSH data callback
// pushes blocks; the decoder pulls them with a timeout so it can re-check the
// session's running flag instead of parking forever.
type Queue struct {
	mu     sync.Mutex
	blocks [][]byte
	signal chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push copies b onto the queue. The caller may reuse b afterwards. Pushes
// after Close are discarded.
func (q *Queue) Push(b []byte) {
	if len(b) == 0 {
		return
	}
	block := make([]byte, len(b))
	copy(block, b)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.blocks = append(q.blocks, block)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Close marks end-of-input. Buffered blocks remain readable; Next reports
// ok=false once the queue is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Next returns the oldest block, or (nil, true) after the timeout with no
// data, or (nil, false) once the queue is closed and drained.
func (q *Queue) Next(timeout time.Duration) ([]byte, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.blocks) > 0 {
			block := q.blocks[0]
			q.blocks = q.blocks[1:]
			q.mu.Unlock()
			return block, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, true
		}
		select {
		case <-q.signal:
		case <-time.After(remain):
			return nil, true
		}
	}
}
