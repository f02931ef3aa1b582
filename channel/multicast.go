package channel

import "github.com/pkg/errors"

// Multicast fans a single Send out to every member Channel; Close
// propagates to all of them.
type Multicast struct {
	members []*Channel
}

func NewMulticast(chans ...*Channel) *Multicast {
	return &Multicast{members: append([]*Channel(nil), chans...)}
}

// Send forwards v to every member, returning the first error
// encountered (after attempting all sends).
func (m *Multicast) Send(v any) error {
	var firstErr error
	for _, ch := range m.members {
		if err := ch.Send(v); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "multicast: member send")
		}
	}
	return firstErr
}

// Close closes every member.
func (m *Multicast) Close() error {
	var firstErr error
	for _, ch := range m.members {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
