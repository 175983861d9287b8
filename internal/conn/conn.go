// Package conn wraps one TCP stream with command framing in both
// directions: a background reader that buffers inbound commands and a
// background writer that drains an unbounded send queue. The first
// detected I/O failure moves the connection to closed and every later
// operation fails fast with ErrClosed.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenesync/relay/internal/proto"
)

// ErrClosed is returned by every operation after the peer is gone.
// There is no automatic reconnection.
var ErrClosed = errors.New("connection closed")

// Option configures a Conn.
type Option func(*Conn)

// WithSendDelay delays every outbound frame by d without reordering.
// Used to reproduce latency-sensitive races deterministically.
func WithSendDelay(d time.Duration) Option {
	return func(c *Conn) { c.sendDelay = d }
}

// Conn is a bidirectional framed command stream over one TCP socket.
type Conn struct {
	nc        net.Conn
	sendDelay time.Duration

	outbox *commandQueue
	inbox  *commandQueue

	nextID atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
	errMu     sync.Mutex
	err       error
}

// New wraps nc and starts the reader and writer loops.
func New(nc net.Conn, opts ...Option) *Conn {
	c := &Conn{
		nc:     nc,
		outbox: newCommandQueue(),
		inbox:  newCommandQueue(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Dial connects to addr and wraps the resulting socket.
func Dial(addr string, opts ...Option) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(nc, opts...), nil
}

// Send enqueues cmd for delivery, stamping it with the connection's next
// sequence id. It never blocks on the socket.
func (c *Conn) Send(cmd *proto.Command) error {
	if !c.outbox.push(cmd.WithID(c.nextID.Add(1))) {
		return c.closeErr()
	}
	return nil
}

// FetchPending returns every fully framed command buffered so far,
// without blocking. Once the connection is dead and the buffer drained
// it fails with an ErrClosed-wrapped error instead of returning an empty
// batch, so "peer gone" is never mistaken for "nothing new yet".
func (c *Conn) FetchPending() ([]*proto.Command, error) {
	return c.inbox.drain()
}

// Receive blocks until a command arrives, ctx is done, or the
// connection dies. Only one goroutine may call Receive.
func (c *Conn) Receive(ctx context.Context) (*proto.Command, error) {
	for {
		cmd, err := c.inbox.pop()
		if cmd != nil {
			return cmd, nil
		}
		if err != nil {
			return nil, err
		}
		select {
		case <-c.inbox.waitCh():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// IsConnected reports whether the peer is still reachable.
func (c *Conn) IsConnected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Done is closed when the connection dies.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	c.fail(nil)
	return nil
}

func (c *Conn) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// fail records the first failure, closes the socket, and poisons both
// queues. A cause of nil or plain EOF reports as a bare ErrClosed.
func (c *Conn) fail(cause error) {
	c.closeOnce.Do(func() {
		err := ErrClosed
		if cause != nil && !errors.Is(cause, io.EOF) {
			err = fmt.Errorf("%w: %w", ErrClosed, cause)
		}
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.closed)
		_ = c.nc.Close()
		c.inbox.close(err)
		c.outbox.close(err)
	})
}

// readLoop always keeps a read against the socket outstanding so a peer
// disconnect is observed promptly instead of being mistaken for an idle
// stream.
func (c *Conn) readLoop() {
	br := bufio.NewReader(c.nc)
	for {
		cmd, err := proto.ReadCommand(br)
		if err != nil {
			c.fail(err)
			return
		}
		if !c.inbox.push(cmd) {
			return
		}
	}
}

func (c *Conn) writeLoop() {
	bw := bufio.NewWriter(c.nc)
	for {
		cmds, err := c.outbox.drain()
		if err != nil {
			return
		}
		if len(cmds) == 0 {
			select {
			case <-c.outbox.waitCh():
			case <-c.closed:
			}
			continue
		}
		for _, cmd := range cmds {
			if c.sendDelay > 0 {
				time.Sleep(c.sendDelay)
			}
			if err := proto.WriteCommand(bw, cmd); err != nil {
				c.fail(err)
				return
			}
		}
		if err := bw.Flush(); err != nil {
			c.fail(err)
			return
		}
	}
}
