package channel

import (
	"github.com/pkg/errors"

	"github.com/meh/shumei/idgen"
	"github.com/meh/shumei/wire"
)

// portDescriptor is the opaque, cloneable payload a *Channel encodes
// to. A same-process peer reconstructs the real Channel from the
// accompanying Transferable; a genuinely cross-process peer only sees
// this descriptor and cannot adopt the port.
type portDescriptor struct {
	ID string `json:"id"`
}

// portCodec encodes a channel as its underlying port, which is a
// transferable: sending a channel moves it.
type portCodec struct{}

func (portCodec) Name() string { return "port" }

func (portCodec) CanHandle(v any) bool {
	_, ok := v.(*Channel)
	return ok
}

func (portCodec) Encode(v any, _ *wire.Wire) (any, []wire.Transferable, error) {
	ch, ok := v.(*Channel)
	if !ok {
		return nil, nil, errors.Errorf("port codec: unexpected type %T", v)
	}
	return portDescriptor{ID: idgen.New().String()}, []wire.Transferable{ch}, nil
}

func (portCodec) Decode(_ any, xfer []wire.Transferable, _ *wire.Wire) (any, error) {
	for _, x := range xfer {
		if ch, ok := x.(*Channel); ok {
			return ch, nil
		}
	}
	return nil, errors.New("port codec: channel transfer requires an in-process side-channel; " +
		"cross-process port transfer is not supported by this transport")
}

// RegisterCodecs installs the codecs this package ships (buffer and
// port) into w. NewDefaultWire already does this.
func RegisterCodecs(w *wire.Wire) {
	w.Register(wire.BufferCodec{})
	w.Register(portCodec{})
}

// NewDefaultWire returns a *wire.Wire with this package's codecs
// registered. Callers that also want the remote-value codec should
// call remote.RegisterCodec on the result.
func NewDefaultWire() *wire.Wire {
	w := wire.New()
	RegisterCodecs(w)
	return w
}
