// Package ws carries IRC lines over WebSocket frames, one line per message.
package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// Conn adapts a client-side WebSocket connection to irc.Conn.
type Conn struct {
	conn net.Conn
	rw   io.ReadWriter

	readMu        sync.Mutex
	readBuffer    []byte
	readBufferPos int

	writeMu sync.Mutex
}

// Dial opens a WebSocket connection to url (ws:// or wss://).
func Dial(ctx context.Context, url string, timeout time.Duration) (*Conn, error) {
	dialer := ws.Dialer{Timeout: timeout}
	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return newConn(conn, br), nil
}

// NewConn wraps a net.Conn whose WebSocket handshake is already complete.
func NewConn(conn net.Conn) *Conn {
	return newConn(conn, nil)
}

func newConn(conn net.Conn, br *bufio.Reader) *Conn {
	c := &Conn{conn: conn}
	var r io.Reader = conn
	// Frames the server sent together with the handshake response sit in br.
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{c}}
	return c
}

// Receive implements irc.Source.
// Frames are served as a byte stream. A frame larger than p is handed out
// over several calls.
func (c *Conn) Receive(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.readBufferPos < len(c.readBuffer) {
		n := copy(p, c.readBuffer[c.readBufferPos:])
		c.readBufferPos += n
		if c.readBufferPos >= len(c.readBuffer) {
			c.readBuffer = nil
			c.readBufferPos = 0
		}
		return n, nil
	}

	data, err := c.readFrame()
	if err != nil {
		return 0, err
	}

	n := copy(p, data)
	if n < len(data) {
		c.readBuffer = data
		c.readBufferPos = n
	}
	return n, nil
}

func (c *Conn) readFrame() ([]byte, error) {
	for {
		data, _, err := wsutil.ReadServerData(c.rw)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		if !bytes.HasSuffix(data, []byte(protocol.Terminator)) {
			data = append(data, protocol.Terminator...)
		}
		return data, nil
	}
}

// Send implements irc.Sink.
// The line terminator is dropped and the rest goes out as one text frame.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	payload := bytes.TrimSuffix(data, []byte(protocol.Terminator))
	if err := wsutil.WriteClientText(c.conn, payload); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Close implements irc.Conn.
// A close frame is attempted only when no Send is in flight.
func (c *Conn) Close() error {
	if c.writeMu.TryLock() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

// RemoteAddr implements irc.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// lockedWriter serializes control frame replies written while reading with
// the data frames written by Send.
type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}
