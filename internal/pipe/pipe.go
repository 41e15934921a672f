// Package pipe carries raw network input from one producer goroutine to one
// consumer goroutine through a growable byte region.
//
// The producer asks for writable memory with Grow, fills it, and publishes it
// with Advance. The consumer receives a read-only view of everything not yet
// consumed with Read and reports progress with Consume. Bytes before the
// consumed cursor are reclaimed by later Grow calls; bytes after it are never
// overwritten.
package pipe

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrReaderClosed is returned to the producer once the consumer is gone.
	ErrReaderClosed = errors.New("pipe: reader closed")

	// ErrWriterClosed is returned when Grow or Advance is called after CloseWriter.
	ErrWriterClosed = errors.New("pipe: writer closed")
)

const (
	defaultInitialSize     = 4096
	defaultPauseThreshold  = 64 * 1024
	defaultResumeThreshold = 32 * 1024
)

// Result is what the consumer sees on each Read.
type Result struct {
	// Buffer holds every byte not yet consumed. It stays valid until the next
	// Consume call and must not be modified.
	Buffer []byte

	// Completed reports that the producer has finished; Buffer will not grow.
	Completed bool

	// Err is the error the producer finished with, if any. Only set when
	// Completed is true.
	Err error
}

// Option configures a Pipe.
type Option func(*Pipe)

// WithInitialSize sets the size of the first allocation.
func WithInitialSize(n int) Option {
	return func(p *Pipe) {
		if n > 0 {
			p.initial = n
		}
	}
}

// WithPauseThreshold sets how many unconsumed bytes make Flush block.
func WithPauseThreshold(n int) Option {
	return func(p *Pipe) {
		if n > 0 {
			p.pause = n
		}
	}
}

// WithResumeThreshold sets how far the consumer must drain before a paused
// Flush returns.
func WithResumeThreshold(n int) Option {
	return func(p *Pipe) {
		if n > 0 {
			p.resume = n
		}
	}
}

// Pipe is a single-producer, single-consumer byte buffer.
type Pipe struct {
	mu    sync.Mutex
	buf   []byte
	start int
	end   int

	// examined counts bytes past start the consumer has already looked at.
	examined int
	// viewing is set while the consumer holds a Buffer returned by Read.
	viewing bool

	writerDone bool
	writerErr  error
	readerDone bool

	readable chan struct{}
	writable chan struct{}

	initial int
	pause   int
	resume  int
}

// New creates an empty Pipe.
func New(opts ...Option) *Pipe {
	p := &Pipe{
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		initial:  defaultInitialSize,
		pause:    defaultPauseThreshold,
		resume:   defaultResumeThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resume > p.pause {
		p.resume = p.pause
	}
	return p
}

// Grow returns a writable region of at least size bytes past the end cursor.
// Only the producer may call it, and only the region returned by the most
// recent call may be written.
func (p *Pipe) Grow(size int) ([]byte, error) {
	if size <= 0 {
		size = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writerDone {
		return nil, ErrWriterClosed
	}

	if p.buf == nil {
		p.buf = make([]byte, max(p.initial, size))
	}
	if len(p.buf)-p.end >= size {
		return p.buf[p.end:], nil
	}

	pending := p.end - p.start

	// Reclaim the consumed prefix in place when nobody is looking at it.
	if !p.viewing && len(p.buf)-pending >= size {
		copy(p.buf, p.buf[p.start:p.end])
		p.start, p.end = 0, pending
		return p.buf[p.end:], nil
	}

	// The consumer may still hold a view of the old array, so the pending
	// bytes are copied into a fresh one instead of being moved.
	next := make([]byte, max(2*len(p.buf), pending+size))
	copy(next, p.buf[p.start:p.end])
	p.buf = next
	p.start, p.end = 0, pending
	return p.buf[p.end:], nil
}

// Advance publishes n bytes written into the region returned by Grow.
func (p *Pipe) Advance(n int) error {
	p.mu.Lock()
	if p.writerDone {
		p.mu.Unlock()
		return ErrWriterClosed
	}
	if n < 0 || p.end+n > len(p.buf) {
		p.mu.Unlock()
		panic("pipe: advance past the writable region")
	}
	p.end += n
	p.mu.Unlock()

	if n > 0 {
		notify(p.readable)
	}
	return nil
}

// Flush blocks while the consumer lags behind by more than the pause
// threshold and still has unexamined bytes to work on. Once paused it waits
// until the backlog drops below the resume threshold.
func (p *Pipe) Flush(ctx context.Context) error {
	limit := p.pause
	for {
		p.mu.Lock()
		if p.readerDone {
			p.mu.Unlock()
			return ErrReaderClosed
		}
		pending := p.end - p.start
		// A consumer that examined everything but cannot consume is waiting
		// for more input; holding the producer back would deadlock both.
		if pending < limit || pending <= p.examined {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		limit = p.resume
		select {
		case <-p.writable:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CloseWriter marks the producer finished. err is handed to the consumer
// together with the remaining bytes; nil means a clean end of stream.
func (p *Pipe) CloseWriter(err error) {
	p.mu.Lock()
	if p.writerDone {
		p.mu.Unlock()
		return
	}
	p.writerDone = true
	p.writerErr = err
	p.mu.Unlock()

	notify(p.readable)
}

// Read waits until there are bytes the consumer has not examined yet, or the
// producer has finished, and returns a view of every unconsumed byte.
func (p *Pipe) Read(ctx context.Context) (Result, error) {
	for {
		p.mu.Lock()
		if p.readerDone {
			p.mu.Unlock()
			return Result{}, ErrReaderClosed
		}
		pending := p.end - p.start
		if pending > p.examined || p.writerDone {
			p.viewing = true
			res := Result{
				Buffer:    p.buf[p.start:p.end:p.end],
				Completed: p.writerDone,
			}
			if p.writerDone {
				res.Err = p.writerErr
			}
			p.mu.Unlock()
			return res, nil
		}
		p.mu.Unlock()

		select {
		case <-p.readable:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// Consume releases the first consumed bytes of the last Read result and
// records that the first examined bytes have been looked at. The view
// returned by Read is invalid afterwards.
func (p *Pipe) Consume(consumed, examined int) {
	p.mu.Lock()
	if consumed < 0 || consumed > examined || p.start+examined > p.end {
		p.mu.Unlock()
		panic("pipe: consume out of range")
	}
	p.start += consumed
	p.examined = examined - consumed
	p.viewing = false
	p.mu.Unlock()

	notify(p.writable)
}

// CloseReader marks the consumer finished and releases a blocked producer.
func (p *Pipe) CloseReader() {
	p.mu.Lock()
	p.readerDone = true
	p.viewing = false
	p.mu.Unlock()

	notify(p.writable)
}

// Len returns the number of unconsumed bytes.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end - p.start
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
