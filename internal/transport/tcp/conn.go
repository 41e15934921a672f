// Package tcp provides the plain TCP transport for the IRC client.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Conn adapts net.Conn to irc.Conn.
type Conn struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Dial connects to address ("host:port"). A zero timeout leaves the limit to
// ctx alone.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return NewConn(conn), nil
}

// Receive implements irc.Source.
// Performs a single read into p.
func (c *Conn) Receive(p []byte) (int, error) {
	return c.conn.Read(p)
}

// Send implements irc.Sink.
// Writes are serialized so concurrent replies never interleave. A deadline on
// ctx becomes the write deadline.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Close implements irc.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements irc.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
