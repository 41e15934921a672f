package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Direction tells whether a recorded line was received or sent.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "IN"
	case DirectionOutbound:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

const (
	fieldDirection protowire.Number = 1
	fieldTime      protowire.Number = 2
	fieldLine      protowire.Number = 3
)

const (
	// maxRecordSize bounds a single delimited record read from a stream.
	maxRecordSize = 1 << 20

	maxVarintLen = 10
)

// ErrRecordTooLarge is returned by ReadDelimited for oversized records.
var ErrRecordTooLarge = errors.New("protocol: record too large")

// Record is one line of a session transcript.
type Record struct {
	Direction Direction
	Time      time.Time
	Line      []byte
}

// Encode encodes the record in protobuf wire format.
func (r *Record) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDirection, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Direction))
	if !r.Time.IsZero() {
		b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Time.UnixNano()))
	}
	b = protowire.AppendTag(b, fieldLine, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Line)
	return b
}

// Decode decodes a record produced by Encode. Unknown fields are skipped.
func (r *Record) Decode(data []byte) error {
	*r = Record{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("failed to decode record: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldDirection && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("failed to decode record direction: %w", protowire.ParseError(n))
			}
			r.Direction = Direction(v)
			data = data[n:]
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("failed to decode record time: %w", protowire.ParseError(n))
			}
			r.Time = time.Unix(0, int64(v))
			data = data[n:]
		case num == fieldLine && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("failed to decode record line: %w", protowire.ParseError(n))
			}
			r.Line = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("failed to decode record: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// WriteDelimited writes the record prefixed with its varint length.
func WriteDelimited(w io.Writer, r *Record) error {
	body := r.Encode()
	size := uint64(len(body))
	frame := protowire.AppendVarint(make([]byte, 0, protowire.SizeVarint(size)+len(body)), size)
	frame = append(frame, body...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// ReadDelimited reads one record written by WriteDelimited. It returns io.EOF
// when the stream ends cleanly between records.
func ReadDelimited(r *bufio.Reader, rec *Record) error {
	size, err := readUvarint(r)
	if err != nil {
		return err
	}
	if size > maxRecordSize {
		return ErrRecordTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("failed to read record: %w", io.ErrUnexpectedEOF)
	}
	return rec.Decode(body)
}

func readUvarint(r *bufio.Reader) (uint64, error) {
	var buf []byte
	for i := 0; i < maxVarintLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("failed to read record length: %w", io.ErrUnexpectedEOF)
		}
		buf = append(buf, b)
		if b < 0x80 {
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("failed to read record length: %w", protowire.ParseError(n))
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("failed to read record length: varint overflow")
}
