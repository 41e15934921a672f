package irc

import "errors"

var (
	// ErrTransport wraps a receive failure; it ends the session.
	ErrTransport = errors.New("irc: transport error")

	// ErrReplyFailed wraps a failed reply write; the session continues.
	ErrReplyFailed = errors.New("irc: reply failed")

	// ErrBadTerminator is reported in strict framing mode when a carriage
	// return is not followed by a line feed.
	ErrBadTerminator = errors.New("irc: carriage return without line feed")

	// ErrLinePanic wraps a panic raised while a single line was handled.
	ErrLinePanic = errors.New("irc: line handler panicked")

	// ErrHandshake wraps a failure to send the registration lines.
	ErrHandshake = errors.New("irc: handshake failed")
)
