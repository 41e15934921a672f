package client

import (
	"errors"

	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/pkg/protocol"
)

// recorders fans a record out to several recorders.
type recorders []irc.Recorder

func multiRecorder(rs []irc.Recorder) irc.Recorder {
	switch len(rs) {
	case 0:
		return nil
	case 1:
		return rs[0]
	default:
		return recorders(rs)
	}
}

// Record implements irc.Recorder.
func (rs recorders) Record(rec protocol.Record) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
