package wire

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

// BufferCodec handles raw []byte payloads, the canonical transferable
// binary buffer. It is registered by default in channel.NewDefaultWire.
type BufferCodec struct{}

func (BufferCodec) Name() string { return "buffer" }

func (BufferCodec) CanHandle(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func (BufferCodec) Encode(v any, _ *Wire) (any, []Transferable, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, nil, errors.Errorf("buffer codec: unexpected type %T", v)
	}
	return b, []Transferable{b}, nil
}

func (BufferCodec) Decode(payload any, xfer []Transferable, _ *Wire) (any, error) {
	// Same-process transfer: the Port handed the original slice back
	// via the transferable side-channel, so prefer it (true "move"
	// semantics, no decode-time copy).
	for _, x := range xfer {
		if b, ok := x.([]byte); ok {
			return b, nil
		}
	}
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, errors.Wrap(err, "buffer codec: decode base64")
		}
		return b, nil
	case nil:
		return []byte(nil), nil
	default:
		return nil, errors.Errorf("buffer codec: unexpected payload type %T", payload)
	}
}
