package swarm

import (
	"fmt"

	"github.com/pthm-cable/flowswarm/codec"
)

// Envelope is the unit exchanged over worker channels. Payload holds the tagged
// codec buffer; Valid and Obstacles carry grid buffers on Init only.
type Envelope struct {
	Tag        codec.Tag
	Worker     int
	Generation uint64
	Payload    codec.Buffer
	Valid      codec.Buffer
	Obstacles  codec.Buffer
}

// ProtocolError reports a message that was malformed or arrived in the wrong
// state. The message is dropped; only the offending worker is affected.
type ProtocolError struct {
	Worker int
	Tag    codec.Tag
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("worker %d: %s: %s", e.Worker, e.Tag, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func violation(worker int, tag codec.Tag, reason string, err error) *ProtocolError {
	return &ProtocolError{Worker: worker, Tag: tag, Reason: reason, Err: err}
}
