// Package irc turns a raw byte stream into protocol lines and answers the
// keep-alive probe. It is shared by every transport.
package irc

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// Source is the inbound half of a connection.
type Source interface {
	// Receive performs one read into p. A zero-length read or io.EOF means
	// the peer closed the stream.
	Receive(p []byte) (int, error)
}

// Sink is the outbound half of a connection. Send may be called while a
// Receive is in progress.
type Sink interface {
	// Send writes data as a single outbound operation.
	Send(ctx context.Context, data []byte) error
}

// Conn abstracts a bidirectional stream for both TCP and WebSocket.
// This interface isolates transport details from line handling.
type Conn interface {
	Source
	Sink

	// Close closes the connection and unblocks a pending Receive.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Display receives every framed line as text. It must not block for long and
// has no way to report failure.
type Display interface {
	Show(line string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(line string)

// Show implements Display.
func (f DisplayFunc) Show(line string) { f(line) }

// WriterDisplay writes one line per call to an io.Writer.
type WriterDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDisplay wraps w.
func NewWriterDisplay(w io.Writer) *WriterDisplay {
	return &WriterDisplay{w: w}
}

// Show implements Display.
func (d *WriterDisplay) Show(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = io.WriteString(d.w, line+"\n")
}

// MultiDisplay fans a line out to several displays in order.
type MultiDisplay []Display

// Show implements Display.
func (m MultiDisplay) Show(line string) {
	for _, d := range m {
		d.Show(line)
	}
}

// Recorder keeps a transcript of the session. rec.Line is only valid for the
// duration of the call.
type Recorder interface {
	Record(rec protocol.Record) error
}
