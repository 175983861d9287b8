package conn

import (
	"sync"

	"github.com/scenesync/relay/internal/proto"
)

// commandQueue is an unbounded FIFO of commands with a wake-up signal.
// Pushing never blocks, so the registry can fan out to every room member
// under its lock without waiting on a slow peer's socket.
type commandQueue struct {
	mu     sync.Mutex
	items  []*proto.Command
	signal chan struct{}
	closed bool
	err    error
}

func newCommandQueue() *commandQueue {
	return &commandQueue{signal: make(chan struct{}, 1)}
}

// push appends cmd. Returns false once the queue is closed.
func (q *commandQueue) push(cmd *proto.Command) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	q.wake()
	return true
}

// pop removes and returns the oldest command. It returns (nil, nil) when
// the queue is open but empty, and (nil, err) once closed and drained.
func (q *commandQueue) pop() (*proto.Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return nil, q.err
		}
		return nil, nil
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, nil
}

// drain removes and returns everything queued. Items buffered before the
// queue was closed are still handed out; the close error is reported
// only once the queue runs dry.
func (q *commandQueue) drain() ([]*proto.Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return nil, q.err
		}
		return nil, nil
	}
	items := q.items
	q.items = nil
	return items, nil
}

// close marks the queue dead with err as its terminal error.
func (q *commandQueue) close(err error) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.err = err
	}
	q.mu.Unlock()
	q.wake()
}

func (q *commandQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *commandQueue) waitCh() <-chan struct{} { return q.signal }
