// Package relay republishes displayed lines on a NATS subject.
package relay

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay is an irc.Display that publishes every line it is shown.
type Relay struct {
	pub     Publisher
	subject string
	log     zerolog.Logger
}

// New creates a Relay publishing to subject.
func New(pub Publisher, subject string, log zerolog.Logger) *Relay {
	return &Relay{pub: pub, subject: subject, log: log}
}

// Show implements irc.Display.
// A failed publish is logged and the line is not retried.
func (r *Relay) Show(line string) {
	if err := r.pub.Publish(r.subject, []byte(line)); err != nil {
		r.log.Warn().Err(err).Str("subject", r.subject).Msg("failed to publish line")
	}
}

// Connect dials the NATS server at url with automatic reconnects.
func Connect(url string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("ircclient"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}
