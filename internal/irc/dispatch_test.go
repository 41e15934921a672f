package irc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/pkg/protocol"
)

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantCommand protocol.Command
		wantReplied bool
		wantWritten []string
	}{
		{
			name:        "ping with trailing payload",
			line:        "PING :irc.example.net",
			wantCommand: protocol.CommandPing,
			wantReplied: true,
			wantWritten: []string{"PONG :irc.example.net\r\n"},
		},
		{
			name:        "ping with empty payload",
			line:        "PING ",
			wantCommand: protocol.CommandPing,
			wantReplied: true,
			wantWritten: []string{"PONG \r\n"},
		},
		{
			name:        "numeric reply",
			line:        ":srv 001 nick :Welcome",
			wantCommand: protocol.CommandOther,
		},
		{
			name:        "bare ping",
			line:        "PING",
			wantCommand: protocol.CommandOther,
		},
		{
			name:        "empty line",
			line:        "",
			wantCommand: protocol.CommandOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newMockConn()
			display := &lineCollector{}
			d := irc.NewDispatcher(conn, display, nil, zerolog.Nop())

			out := d.Dispatch(context.Background(), []byte(tt.line))

			require.NoError(t, out.Err)
			assert.Equal(t, tt.wantCommand, out.Command)
			assert.Equal(t, tt.wantReplied, out.Replied)
			assert.Equal(t, []string{tt.line}, display.Lines())
			if tt.wantWritten == nil {
				assert.Empty(t, conn.GetWritten())
			} else {
				assert.Equal(t, tt.wantWritten, conn.GetWritten())
			}
		})
	}
}

func TestDispatcher_ReplyFailure(t *testing.T) {
	conn := newMockConn()
	sendErr := errors.New("write: broken pipe")
	conn.writeErr = sendErr
	d := irc.NewDispatcher(conn, nil, nil, zerolog.Nop())

	out := d.Dispatch(context.Background(), []byte("PING :x"))

	assert.Equal(t, protocol.CommandPing, out.Command)
	assert.False(t, out.Replied)
	assert.ErrorIs(t, out.Err, irc.ErrReplyFailed)
	assert.ErrorIs(t, out.Err, sendErr)
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	conn := newMockConn()
	display := irc.DisplayFunc(func(string) { panic("display exploded") })
	d := irc.NewDispatcher(conn, display, nil, zerolog.Nop())

	var out irc.Outcome
	assert.NotPanics(t, func() {
		out = d.Dispatch(context.Background(), []byte("PING :x"))
	})

	assert.ErrorIs(t, out.Err, irc.ErrLinePanic)
	assert.Contains(t, out.Err.Error(), "display exploded")
	assert.Empty(t, conn.GetWritten())
}

func TestDispatcher_RecordsBothDirections(t *testing.T) {
	conn := newMockConn()
	rec := &memRecorder{}
	d := irc.NewDispatcher(conn, nil, rec, zerolog.Nop())

	d.Dispatch(context.Background(), []byte("hello"))
	d.Dispatch(context.Background(), []byte("PING :abc"))

	records := rec.Records()
	require.Len(t, records, 3)

	assert.Equal(t, protocol.DirectionInbound, records[0].Direction)
	assert.Equal(t, "hello", string(records[0].Line))
	assert.Equal(t, protocol.DirectionInbound, records[1].Direction)
	assert.Equal(t, "PING :abc", string(records[1].Line))
	assert.Equal(t, protocol.DirectionOutbound, records[2].Direction)
	assert.Equal(t, "PONG :abc\r\n", string(records[2].Line))
	for _, r := range records {
		assert.False(t, r.Time.IsZero())
	}
}

func TestDispatcher_DoesNotRetainLine(t *testing.T) {
	conn := newMockConn()
	d := irc.NewDispatcher(conn, nil, nil, zerolog.Nop())

	buf := []byte("PING :before")
	d.Dispatch(context.Background(), buf)
	copy(buf, "XXXXXXXXXXXX")

	assert.Equal(t, []string{"PONG :before\r\n"}, conn.GetWritten())
}
