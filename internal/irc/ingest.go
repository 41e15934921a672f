package irc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/omochice/toy-irc-client/internal/metrics"
	"github.com/omochice/toy-irc-client/internal/pipe"
)

// DefaultMinReadSize is the smallest region handed to a single Receive.
const DefaultMinReadSize = 4096

// Ingestor copies bytes from a Source into a pipe until the stream ends.
type Ingestor struct {
	src     Source
	pipe    *pipe.Pipe
	minRead int
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewIngestor creates an Ingestor. minRead <= 0 selects DefaultMinReadSize.
func NewIngestor(src Source, p *pipe.Pipe, minRead int, m *metrics.Metrics, log zerolog.Logger) *Ingestor {
	if minRead <= 0 {
		minRead = DefaultMinReadSize
	}
	return &Ingestor{
		src:     src,
		pipe:    p,
		minRead: minRead,
		metrics: m,
		log:     log,
	}
}

// Run receives until the peer closes the stream, the consumer goes away, or
// a transport error occurs. The pipe's writer side is closed on return with
// the same error Run returns.
func (in *Ingestor) Run(ctx context.Context) error {
	err := in.run(ctx)
	in.pipe.CloseWriter(err)
	return err
}

func (in *Ingestor) run(ctx context.Context) error {
	for {
		region, err := in.pipe.Grow(in.minRead)
		if err != nil {
			return err
		}

		n, rerr := in.src.Receive(region)
		if n > 0 {
			if err := in.pipe.Advance(n); err != nil {
				return err
			}
			in.metrics.AddIngestBytes(n)
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				in.log.Debug().Msg("server closed the stream")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrTransport, rerr)
		}
		if n == 0 {
			in.log.Debug().Msg("server closed the stream")
			return nil
		}

		if err := in.pipe.Flush(ctx); err != nil {
			if errors.Is(err, pipe.ErrReaderClosed) {
				return nil
			}
			return err
		}
	}
}
