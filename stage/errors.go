package stage

import "github.com/pkg/errors"

// ErrProtocolViolation reports a link-protocol failure; the runtime
// raises it when a link's first packet isn't STAGE. Malformed envelopes
// and unknown codec names fail in wire.Decode instead, and the channel
// logs and drops such values rather than returning this type.
type ErrProtocolViolation struct {
	Reason string
}

func (e *ErrProtocolViolation) Error() string {
	return "stage: protocol violation: " + e.Reason
}

func protocolViolation(reason string) error {
	return errors.WithStack(&ErrProtocolViolation{Reason: reason})
}

// ErrUnknownActor: a SEND to a local-stage address with no matching
// actor is a recoverable error, not a panic.
type ErrUnknownActor struct {
	Address Address
}

func (e *ErrUnknownActor) Error() string {
	return "stage: unknown actor " + e.Address.String()
}

func unknownActor(addr Address) error {
	return errors.WithStack(&ErrUnknownActor{Address: addr})
}

// ErrClosed reports an operation against a stage or link that has
// already torn down.
var ErrClosed = errors.New("stage: closed")
