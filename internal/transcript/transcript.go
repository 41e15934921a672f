// Package transcript stores the lines of a session as length-delimited
// protobuf records and reads them back.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("transcript: closed")

// Writer appends records to a file. It implements irc.Recorder.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	return &Writer{file: f, w: bufio.NewWriter(f)}, nil
}

// Record implements irc.Recorder.
// Each record is flushed so a crash loses at most the line being written.
func (w *Writer) Record(rec protocol.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := protocol.WriteDelimited(w.w, &rec); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.w.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	return flushErr
}

// Reader iterates the records of a transcript.
type Reader struct {
	r *bufio.Reader
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (protocol.Record, error) {
	var rec protocol.Record
	err := protocol.ReadDelimited(r.r, &rec)
	return rec, err
}

// Dump writes every record of r to w, one per line, and returns the number
// written.
func Dump(w io.Writer, r *Reader) (int, error) {
	n := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		if _, err := fmt.Fprintln(w, Format(rec)); err != nil {
			return n, err
		}
		n++
	}
}

// Format renders a record as "<time> <direction> <line>". Outbound lines are
// shown without their terminator.
func Format(rec protocol.Record) string {
	ts := "-"
	if !rec.Time.IsZero() {
		ts = rec.Time.UTC().Format(time.RFC3339Nano)
	}
	line := strings.TrimSuffix(string(rec.Line), protocol.Terminator)
	line = strings.ToValidUTF8(line, "\uFFFD")
	return fmt.Sprintf("%s %-3s %s", ts, rec.Direction, line)
}
