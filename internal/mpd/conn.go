package mpd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

const keepaliveInterval = 1 * time.Second

// Conn multiplexes logically-concurrent commands over one physical
// connection. Responses on the wire carry no correlation tag: the daemon
// answers strictly in request order, so the Nth frame read always resolves
// the Nth command written. That invariant holds because the waiter push and
// the wire write happen atomically under the writer lock.
//
// There is no per-command timeout and no reconnection. A transport or
// protocol failure tears the connection down and fails every in-flight and
// future caller; a stalled peer stalls its callers until Close.
type Conn struct {
	// writeMu serializes submissions. For the idle command it stays held
	// until the response arrives: the protocol forbids pipelining while a
	// long-poll wait is outstanding.
	writeMu sync.Mutex
	w       *Writer

	queueMu sync.Mutex
	queue   []chan response

	raw       io.Closer
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error // set before done is closed
}

// NewConn performs the protocol handshake on rw and starts the background
// reader and keepalive tasks. It returns the negotiated protocol version.
func NewConn(rw io.ReadWriteCloser) (*Conn, string, error) {
	r, version, err := NewReader(rw)
	if err != nil {
		rw.Close()
		return nil, "", err
	}

	c := &Conn{
		w:    NewWriter(rw),
		raw:  rw,
		done: make(chan struct{}),
	}

	go c.readLoop(r)
	go c.keepaliveLoop()

	return c, version, nil
}

// Command submits one command and blocks until its response frame arrives.
// Concurrent callers are safe; each receives exactly the frame produced for
// its own command. Errors are annotated with the command that produced them.
func (c *Conn) Command(cmd string, args ...string) (*Frame, error) {
	frame, err := c.submit(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("mpd command %s args %q: %w", cmd, args, err)
	}
	return frame, nil
}

// Close tears down the connection, aborting the background tasks and failing
// any caller still awaiting a response.
func (c *Conn) Close() error {
	c.teardown(ErrClosed)
	return nil
}

func (c *Conn) submit(cmd string, args []string) (*Frame, error) {
	ch := make(chan response, 1)

	c.writeMu.Lock()

	select {
	case <-c.done:
		c.writeMu.Unlock()
		return nil, c.doneErr()
	default:
	}

	// Push the waiter and write the line as one atomic step with respect to
	// other submissions; this is what makes queue order equal wire order.
	c.queueMu.Lock()
	c.queue = append(c.queue, ch)
	err := c.w.WriteCommand(cmd, args...)
	c.queueMu.Unlock()

	if err != nil {
		c.writeMu.Unlock()
		c.teardown(err)
		return nil, err
	}

	if isIdle(cmd) {
		// Hold the writer lock across the wait so nothing else reaches the
		// wire while the connection is in its blocking idle state.
		defer c.writeMu.Unlock()
	} else {
		c.writeMu.Unlock()
	}

	select {
	case resp := <-ch:
		return resp.result()
	case <-c.done:
		// The reader may have delivered just before teardown.
		select {
		case resp := <-ch:
			return resp.result()
		default:
			return nil, c.doneErr()
		}
	}
}

func (r response) result() (*Frame, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.frame, nil
}

// readLoop resolves the oldest outstanding waiter with each frame read. It
// runs for the lifetime of the connection; any read failure is unrecoverable
// since a desynchronized stream cannot be trusted again.
func (c *Conn) readLoop(r *Reader) {
	for {
		resp, err := r.ReadFrame()
		if err != nil {
			c.teardown(err)
			return
		}

		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.queueMu.Unlock()
			// Every frame is provoked by a queued command; a spontaneous
			// frame means we have lost protocol sync.
			c.teardown(protocolErrorf("response frame arrived with no command outstanding"))
			return
		}
		ch := c.queue[0]
		c.queue = c.queue[1:]
		c.queueMu.Unlock()

		ch <- resp
	}
}

// keepaliveLoop pings on a fixed interval so a half-dead peer is noticed. An
// application-level error response is logged and ignored; a transport
// failure means the connection is gone and the task ends with it.
func (c *Conn) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		_, err := c.Command("ping")
		var respErr *ResponseError
		switch {
		case err == nil:
		case errors.As(err, &respErr):
			log.Printf("[mpd] keepalive ping error: %v", err)
		default:
			return
		}
	}
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		if errors.Is(err, ErrClosed) {
			c.closeErr = err
		} else {
			c.closeErr = fmt.Errorf("%w: %s", ErrClosed, err)
		}
		close(c.done)
		c.raw.Close()
	})
}

// doneErr reports why the connection went away. Only valid after done is
// closed.
func (c *Conn) doneErr() error {
	return c.closeErr
}

func isIdle(cmd string) bool {
	return strings.EqualFold(strings.TrimSpace(cmd), "idle")
}
