package irc_test

import (
	"context"
	"net"
	"sync"

	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// mockConn is a scripted implementation of irc.Conn for testing.
// Receive hands out the scripted chunks in order; once they are exhausted it
// returns readErr, blocks until Close when block is set, or reports a
// zero-length read.
type mockConn struct {
	mu       sync.Mutex
	chunks   [][]byte
	pending  []byte
	readErr  error
	block    bool
	written  [][]byte
	writeErr error

	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn(chunks ...string) *mockConn {
	m := &mockConn{closed: make(chan struct{})}
	for _, c := range chunks {
		if c != "" {
			m.chunks = append(m.chunks, []byte(c))
		}
	}
	return m
}

func (m *mockConn) Receive(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) == 0 && len(m.chunks) > 0 {
		m.pending, m.chunks = m.chunks[0], m.chunks[1:]
	}
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	block, err := m.block, m.readErr
	m.mu.Unlock()

	if block {
		<-m.closed
		return 0, net.ErrClosed
	}
	return 0, err
}

func (m *mockConn) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return "127.0.0.1:6667"
}

func (m *mockConn) GetWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.written))
	for i, w := range m.written {
		out[i] = string(w)
	}
	return out
}

// lineCollector records displayed lines.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) Show(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// memRecorder keeps copies of recorded lines.
type memRecorder struct {
	mu      sync.Mutex
	records []protocol.Record
}

func (r *memRecorder) Record(rec protocol.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Line = append([]byte(nil), rec.Line...)
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) Records() []protocol.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Record(nil), r.records...)
}

// Compile-time check that mockConn implements irc.Conn
var _ irc.Conn = (*mockConn)(nil)
