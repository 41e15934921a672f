// Package protocol holds the wire-level pieces of the line protocol: the line
// terminator, command classification, and the handful of lines the client
// itself emits.
package protocol

import (
	"bytes"
)

// Terminator ends every protocol line.
const Terminator = "\r\n"

var (
	pingToken = []byte("PING")
	pongToken = []byte("PONG ")
)

// Command classifies the leading token of a line.
type Command int

const (
	CommandOther Command = iota
	CommandPing
)

// String returns the string representation of Command
func (c Command) String() string {
	switch c {
	case CommandPing:
		return "PING"
	case CommandOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// ParseCommand reads the token up to the first space and classifies it.
// For PING the payload is everything after that space, byte for byte.
// A line without any space carries no command token and is CommandOther.
func ParseCommand(line []byte) (Command, []byte) {
	i := bytes.IndexByte(line, ' ')
	if i < 0 {
		return CommandOther, nil
	}
	if bytes.Equal(line[:i], pingToken) {
		return CommandPing, line[i+1:]
	}
	return CommandOther, nil
}

// Pong builds the reply to a PING carrying payload.
func Pong(payload []byte) []byte {
	out := make([]byte, 0, len(pongToken)+len(payload)+len(Terminator))
	out = append(out, pongToken...)
	out = append(out, payload...)
	return append(out, Terminator...)
}

// Nick builds the NICK registration line.
func Nick(nick string) []byte {
	return []byte("NICK " + nick + Terminator)
}

// User builds the USER registration line.
func User(nick, realName string) []byte {
	return []byte("USER " + nick + " * * " + realName + Terminator)
}

// Handshake returns the two registration lines in the order they are sent.
func Handshake(nick, realName string) [][]byte {
	return [][]byte{Nick(nick), User(nick, realName)}
}
