// Package client is a synchronous client for the prioq wire protocol:
// one request in flight, one response read back.
package client

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	"github.com/pkg/errors"

	"github.com/azargarov/prioq"
	"github.com/azargarov/prioq/internal/protocol"
)

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 10 * time.Second

// Client owns one connection to the server.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	Timeout time.Duration
}

// Dial connects to addr, retrying with jittered exponential backoff as
// described by rp. Zero fields of rp take the package defaults.
func Dial(ctx context.Context, addr string, rp prioq.RetryPolicy) (*Client, error) {
	rp = rp.WithDefaults()
	bo := boff.New(rp.Initial, rp.Max, time.Now().UnixNano())

	var (
		d       net.Dialer
		lastErr error
	)
	for attempt := 1; attempt <= rp.Attempts; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return New(conn), nil
		}
		lastErr = err
		if attempt == rp.Attempts {
			break
		}

		timer := time.NewTimer(bo.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(ctx.Err(), "client: dial %s", addr)
		}
	}
	return nil, errors.Wrapf(lastErr, "client: dial %s after %d attempts", addr, rp.Attempts)
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn:    conn,
		r:       bufio.NewReader(conn),
		Timeout: DefaultTimeout,
	}
}

// ParseInput applies the strict client-side check to a line typed by
// a user. It returns protocol.Line with Exit set for the sentinel.
func ParseInput(input string) (protocol.Line, error) {
	input = strings.TrimRight(input, "\r\n")
	if strings.ContainsAny(input, "\r\n") {
		return protocol.Line{}, protocol.ErrMalformed
	}
	return protocol.ParseLine(input)
}

// Send submits command at priority p and waits for its response.
func (c *Client) Send(p prioq.Priority, command string) (string, error) {
	if !p.Valid() {
		return "", protocol.ErrInvalidPriority
	}
	if strings.ContainsAny(command, "\r\n") {
		return "", protocol.ErrMalformed
	}
	line := protocol.FormatRequest(p, command)
	if _, err := protocol.ParseLine(line); err != nil {
		return "", err
	}
	return c.roundTrip(line)
}

// SendLine validates a raw "PRIORITY:COMMAND" line and sends it.
// The exit sentinel is refused; use Close.
func (c *Client) SendLine(input string) (string, error) {
	l, err := ParseInput(input)
	if err != nil {
		return "", err
	}
	if l.Exit {
		return "", errors.New("client: use Close to end the session")
	}
	return c.Send(l.Priority, l.Command)
}

func (c *Client) roundTrip(line string) (string, error) {
	if c.Timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
			return "", errors.Wrap(err, "client: set deadline")
		}
	}
	if _, err := io.WriteString(c.conn, line); err != nil {
		return "", errors.Wrap(err, "client: write request")
	}
	resp, err := protocol.ReadResponse(c.r)
	if err != nil {
		return "", errors.Wrap(err, "client: read response")
	}
	return resp, nil
}

// Close sends the exit sentinel, waits for the farewell and closes the
// connection. The farewell text is returned when one arrived.
func (c *Client) Close() (string, error) {
	defer c.conn.Close()
	return c.roundTrip(protocol.ExitSentinel + "\n")
}
