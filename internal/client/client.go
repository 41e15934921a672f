// Package client builds an IRC session from configuration and runs it.
package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/omochice/toy-irc-client/internal/config"
	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/internal/metrics"
	"github.com/omochice/toy-irc-client/internal/transcript"
	"github.com/omochice/toy-irc-client/internal/transport/tcp"
	"github.com/omochice/toy-irc-client/internal/transport/ws"
)

// Client connects to one server over the configured transport.
// Both TCP and WebSocket are handled through irc.Conn.
type Client struct {
	cfg       config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	displays  irc.MultiDisplay
	recorders []irc.Recorder
	observers []irc.StateObserver
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger passed down to the session.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics sets the metrics the session reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithDisplay adds a destination for received lines.
func WithDisplay(d irc.Display) Option {
	return func(c *Client) { c.displays = append(c.displays, d) }
}

// WithRecorder adds a recorder for every line sent and received.
func WithRecorder(r irc.Recorder) Option {
	return func(c *Client) { c.recorders = append(c.recorders, r) }
}

// WithStateObserver registers an observer for session state changes.
func WithStateObserver(obs irc.StateObserver) Option {
	return func(c *Client) { c.observers = append(c.observers, obs) }
}

// New validates cfg and creates a Client.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Client{
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the validated configuration.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Dialer returns the DialFunc for the configured transport.
func (c *Client) Dialer() irc.DialFunc {
	switch c.cfg.Transport {
	case config.TransportWebSocket:
		return func(ctx context.Context) (irc.Conn, error) {
			conn, err := ws.Dial(ctx, c.cfg.URL, c.cfg.DialTimeout)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	default:
		return func(ctx context.Context) (irc.Conn, error) {
			conn, err := tcp.Dial(ctx, c.cfg.Address(), c.cfg.DialTimeout)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}
}

// Run connects, registers, and streams until the server closes the
// connection or ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	recorders := c.recorders
	if c.cfg.Transcript != "" {
		w, err := transcript.Create(c.cfg.Transcript)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				c.log.Warn().Err(err).Msg("failed to close transcript")
			}
		}()
		recorders = append(recorders[:len(recorders):len(recorders)], w)
	}

	opts := []irc.Option{
		irc.WithLogger(c.log),
		irc.WithMetrics(c.metrics),
		irc.WithFraming(c.cfg.FramingMode()),
		irc.WithMinReadSize(c.cfg.MinReadSize),
	}
	if len(c.displays) > 0 {
		opts = append(opts, irc.WithDisplay(c.displays))
	}
	if r := multiRecorder(recorders); r != nil {
		opts = append(opts, irc.WithRecorder(r))
	}
	for _, obs := range c.observers {
		opts = append(opts, irc.WithStateObserver(obs))
	}

	c.log.Info().
		Str("transport", c.cfg.Transport).
		Str("target", c.target()).
		Str("nick", c.cfg.Nick).
		Msg("connecting")

	session := irc.NewSession(c.Dialer(), c.cfg.Nick, c.cfg.RealName, opts...)
	return session.Run(ctx)
}

func (c *Client) target() string {
	if c.cfg.Transport == config.TransportWebSocket {
		return c.cfg.URL
	}
	return c.cfg.Address()
}
