package irc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// Outcome is the result of handling one line. The framer inspects it and
// moves on to the next line whatever it holds.
type Outcome struct {
	Command protocol.Command
	Replied bool
	Err     error
}

// Dispatcher displays a line, classifies its command, and answers PING.
type Dispatcher struct {
	sink     Sink
	display  Display
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher writing replies to sink. display and
// recorder may be nil.
func NewDispatcher(sink Sink, display Display, recorder Recorder, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:     sink,
		display:  display,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Dispatch handles one line without its terminator. line is a view into the
// input buffer and is not retained.
func (d *Dispatcher) Dispatch(ctx context.Context, line []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrLinePanic, r)
		}
	}()

	d.record(protocol.DirectionInbound, line)

	if d.display != nil {
		d.display.Show(strings.ToValidUTF8(string(line), "\uFFFD"))
	}

	cmd, payload := protocol.ParseCommand(line)
	out.Command = cmd
	if cmd != protocol.CommandPing {
		return out
	}

	reply := protocol.Pong(payload)
	if err := d.sink.Send(ctx, reply); err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrReplyFailed, err)
		return out
	}
	out.Replied = true
	d.record(protocol.DirectionOutbound, reply)
	return out
}

func (d *Dispatcher) record(dir protocol.Direction, line []byte) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.Record(protocol.Record{Direction: dir, Time: d.now(), Line: line})
	if err != nil {
		d.log.Warn().Err(err).Str("direction", dir.String()).Msg("failed to record line")
	}
}
