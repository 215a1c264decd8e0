package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/azargarov/prioq"
	"github.com/azargarov/prioq/internal/protocol"
)

// clientConn is the write side of one connection, shared between the
// handler goroutine (errors, goodbye) and the dispatch worker
// (responses). Writes are serialized and never happen after close.
type clientConn struct {
	id   string
	conn net.Conn

	mu           sync.Mutex
	w            *bufio.Writer
	closed       bool
	writeTimeout time.Duration

	// pending counts requests accepted by the core whose response
	// has not been delivered yet.
	pending sync.WaitGroup
}

func newClientConn(id string, conn net.Conn, writeTimeout time.Duration) *clientConn {
	return &clientConn{
		id:           id,
		conn:         conn,
		w:            bufio.NewWriterSize(conn, 4096),
		writeTimeout: writeTimeout,
	}
}

func (c *clientConn) write(body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return prioq.ErrTargetClosed
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if err := protocol.WriteResponse(c.w, body); err != nil {
		return err
	}
	return c.w.Flush()
}

// target returns the response target for a single accepted request.
// The caller must have done pending.Add(1) for it.
func (c *clientConn) target() prioq.ResponseTarget {
	return prioq.TargetFunc(func(resp prioq.Response) error {
		defer c.pending.Done()
		return c.write(resp.Body)
	})
}

// waitPending blocks until every accepted request has been answered
// or d elapses. It reports whether everything was answered.
func (c *clientConn) waitPending(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// interrupt unblocks a pending read without closing the socket.
func (c *clientConn) interrupt() {
	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *clientConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.w.Flush()
	return c.conn.Close()
}
