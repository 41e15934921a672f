package irc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/omochice/toy-irc-client/internal/metrics"
	"github.com/omochice/toy-irc-client/internal/pipe"
)

// FramingMode selects how the two-byte terminator is matched.
type FramingMode int

const (
	// FramingLenient ends a line at the first carriage return and skips the
	// following byte without looking at it.
	FramingLenient FramingMode = iota

	// FramingStrict requires the carriage return to be followed by a line
	// feed and rejects the line otherwise.
	FramingStrict
)

// String returns the string representation of FramingMode
func (m FramingMode) String() string {
	switch m {
	case FramingLenient:
		return "lenient"
	case FramingStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseFramingMode parses the names returned by FramingMode.String.
func ParseFramingMode(s string) (FramingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return FramingLenient, nil
	case "strict":
		return FramingStrict, nil
	default:
		return FramingLenient, fmt.Errorf("unknown framing mode %q", s)
	}
}

// Framer consumes buffered input, splits it into lines, and hands each line
// to a Dispatcher in arrival order.
type Framer struct {
	pipe       *pipe.Pipe
	dispatcher *Dispatcher
	mode       FramingMode
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewFramer creates a Framer reading from p.
func NewFramer(p *pipe.Pipe, d *Dispatcher, mode FramingMode, m *metrics.Metrics, log zerolog.Logger) *Framer {
	return &Framer{
		pipe:       p,
		dispatcher: d,
		mode:       mode,
		metrics:    m,
		log:        log,
	}
}

// Run frames lines until the producer has finished and no terminator is left
// in the buffer. An unterminated tail at that point is dropped.
func (f *Framer) Run(ctx context.Context) error {
	defer f.pipe.CloseReader()

	for {
		res, err := f.pipe.Read(ctx)
		if err != nil {
			return err
		}

		consumed := f.scan(ctx, res.Buffer)

		if res.Completed {
			if tail := len(res.Buffer) - consumed; tail > 0 {
				f.log.Debug().Int("bytes", tail).Msg("discarding unterminated tail")
			}
			f.pipe.Consume(len(res.Buffer), len(res.Buffer))
			return nil
		}

		f.pipe.Consume(consumed, len(res.Buffer))
	}
}

// scan handles every complete line in buf and returns how many bytes they
// used, terminators included.
func (f *Framer) scan(ctx context.Context, buf []byte) int {
	consumed := 0
	for {
		rest := buf[consumed:]
		i := bytes.IndexByte(rest, '\r')
		// The byte paired with the carriage return has to be in the buffer
		// before the line can be released.
		if i < 0 || i+1 >= len(rest) {
			return consumed
		}

		line := rest[:i]
		if f.mode == FramingStrict && rest[i+1] != '\n' {
			f.reject(line)
			consumed += i + 1
			continue
		}

		f.handle(ctx, line)
		consumed += i + 2
	}
}

func (f *Framer) handle(ctx context.Context, line []byte) {
	out := f.dispatcher.Dispatch(ctx, line)
	f.metrics.IncLine(out.Command.String())

	switch {
	case out.Err == nil:
		if out.Replied {
			f.metrics.IncReply("ok")
		}
	case errors.Is(out.Err, ErrReplyFailed):
		f.metrics.IncReply("error")
		f.log.Warn().Err(out.Err).Str("command", out.Command.String()).Msg("failed to send reply")
	case errors.Is(out.Err, ErrLinePanic):
		f.metrics.IncLineError("panic")
		f.log.Error().Err(out.Err).Int("bytes", len(line)).Msg("failed to process line")
	default:
		f.metrics.IncLineError("other")
		f.log.Error().Err(out.Err).Int("bytes", len(line)).Msg("failed to process line")
	}
}

func (f *Framer) reject(line []byte) {
	f.metrics.IncLineError("decode")
	f.log.Warn().Err(ErrBadTerminator).Int("bytes", len(line)).Msg("dropping malformed line")
}
