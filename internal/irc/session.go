package irc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-irc-client/internal/metrics"
	"github.com/omochice/toy-irc-client/internal/pipe"
	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// State is the lifecycle state of a session.
type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateStreaming
	StateDraining
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateStreaming:
		return "Streaming"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// StateObserver is called when the session state changes.
type StateObserver interface {
	OnStateChange(previous, current State)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(previous, current State)

// OnStateChange implements StateObserver.
func (f StateObserverFunc) OnStateChange(previous, current State) { f(previous, current) }

// DialFunc opens the connection a session runs on.
type DialFunc func(ctx context.Context) (Conn, error)

type options struct {
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	display   Display
	recorder  Recorder
	framing   FramingMode
	minRead   int
	pipeOpts  []pipe.Option
	observers []StateObserver
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics the session reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDisplay sets where framed lines are shown.
func WithDisplay(d Display) Option {
	return func(o *options) { o.display = d }
}

// WithRecorder records every line sent and received.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithFraming selects the terminator matching mode.
func WithFraming(m FramingMode) Option {
	return func(o *options) { o.framing = m }
}

// WithMinReadSize sets the smallest region offered to a single receive.
func WithMinReadSize(n int) Option {
	return func(o *options) { o.minRead = n }
}

// WithPipeOptions tunes the buffer between ingestor and framer.
func WithPipeOptions(opts ...pipe.Option) Option {
	return func(o *options) { o.pipeOpts = append(o.pipeOpts, opts...) }
}

// WithStateObserver registers an observer for state changes.
func WithStateObserver(obs StateObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// Session drives one connection from dial to close.
type Session struct {
	dial     DialFunc
	nick     string
	realName string
	opts     options

	mu    sync.RWMutex
	state State
}

// NewSession creates a Session in the Connecting state.
func NewSession(dial DialFunc, nick, realName string, opts ...Option) *Session {
	o := options{
		logger:  zerolog.Nop(),
		minRead: DefaultMinReadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		dial:     dial,
		nick:     nick,
		realName: realName,
		opts:     o,
		state:    StateConnecting,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run dials, registers, and then streams until the server closes the
// connection, a receive fails, or ctx is canceled. It returns nil when the
// server closes the stream cleanly.
func (s *Session) Run(ctx context.Context) error {
	log := s.opts.logger
	s.opts.metrics.SetSessionState(int(StateConnecting))

	conn, err := s.dial(ctx)
	if err != nil {
		s.transition(StateClosed)
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	log = log.With().Str("remote", conn.RemoteAddr()).Logger()

	// Closing the connection is what unblocks a pending Receive.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.transition(StateHandshaking)
	if err := s.handshake(ctx, conn); err != nil {
		s.transition(StateClosed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	p := pipe.New(s.opts.pipeOpts...)
	dispatcher := NewDispatcher(conn, s.opts.display, s.opts.recorder, log)
	ingestor := NewIngestor(conn, p, s.opts.minRead, s.opts.metrics, log)
	framer := NewFramer(p, dispatcher, s.opts.framing, s.opts.metrics, log)

	s.transition(StateStreaming)

	var g errgroup.Group
	g.Go(func() error {
		err := ingestor.Run(ctx)
		s.transitionFrom(StateStreaming, StateDraining)
		return err
	})
	g.Go(func() error {
		return framer.Run(ctx)
	})
	err = g.Wait()

	s.transition(StateClosed)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session ended")
	}
	return err
}

func (s *Session) handshake(ctx context.Context, sink Sink) error {
	for _, line := range protocol.Handshake(s.nick, s.realName) {
		if err := sink.Send(ctx, line); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		if s.opts.recorder != nil {
			rec := protocol.Record{Direction: protocol.DirectionOutbound, Time: time.Now(), Line: line}
			if err := s.opts.recorder.Record(rec); err != nil {
				s.opts.logger.Warn().Err(err).Msg("failed to record line")
			}
		}
	}
	return nil
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	s.notify(prev, next)
}

// transitionFrom moves to next only if the session is still in from.
func (s *Session) transitionFrom(from, next State) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	s.notify(from, next)
}

func (s *Session) notify(prev, next State) {
	if prev == next {
		return
	}
	s.opts.metrics.SetSessionState(int(next))
	s.opts.logger.Debug().Str("from", prev.String()).Str("state", next.String()).Msg("session state changed")
	for _, obs := range s.opts.observers {
		obs.OnStateChange(prev, next)
	}
}
