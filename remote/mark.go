package remote

import (
	"github.com/pkg/errors"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/wire"
)

// marked is the unexported wrapper Mark produces; its privacy is what
// makes Mark an explicit minting point and keeps the marker from
// colliding with any user-controlled value.
type marked struct{ v any }

// Mark flags v for promotion to a handler/proxy pair the next time it
// crosses a Channel, instead of being structurally cloned like any
// other value.
func Mark(v any) any { return marked{v: v} }

// remoteDescriptor is the cloneable payload a marked value encodes to;
// a same-process peer reconstructs the real Proxy from the
// accompanying Transferable channel half.
type remoteDescriptor struct {
	ID string `json:"id"`
}

// remoteCodec is the marker-based promotion rule: only marked values
// are promoted to a handler+proxy pair during encode, everything else
// clones as plain data.
type remoteCodec struct{}

func (remoteCodec) Name() string { return "remote" }

func (remoteCodec) CanHandle(v any) bool {
	_, ok := v.(marked)
	return ok
}

func (remoteCodec) Encode(v any, w *wire.Wire) (any, []wire.Transferable, error) {
	m, ok := v.(marked)
	if !ok {
		return nil, nil, errors.Errorf("remote codec: unexpected type %T", v)
	}
	callerSide, handlerSide := channel.Pair(w, channel.Extra{})
	if _, err := Spawn(m.v, handlerSide); err != nil {
		return nil, nil, errors.Wrap(err, "remote codec: spawn handler")
	}
	return remoteDescriptor{ID: newID()}, []wire.Transferable{callerSide}, nil
}

func (remoteCodec) Decode(_ any, xfer []wire.Transferable, _ *wire.Wire) (any, error) {
	for _, x := range xfer {
		if ch, ok := x.(*channel.Channel); ok {
			return NewProxy(ch), nil
		}
	}
	return nil, errors.New("remote codec: proxy promotion requires an in-process side-channel; " +
		"cross-process remote-value transfer is not supported by this transport")
}

// RegisterCodec installs the remote-value, thrown-error, and request/
// response protocol codecs into w.
func RegisterCodec(w *wire.Wire) {
	w.Register(remoteCodec{})
	w.Register(thrownCodec{})
	w.Register(requestCodec{})
	w.Register(responseCodec{})
}
