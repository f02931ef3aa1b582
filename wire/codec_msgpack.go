package wire

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// MsgpValue is the pair of interfaces tinylib/msgp code-generates for
// any type annotated with `//go:generate msgp`. Registering a
// MsgpCodec for such a type gives it a compact binary wire
// representation instead of the default JSON plain tree — useful for
// buffer-heavy payloads.
type MsgpValue interface {
	msgp.Marshaler
	msgp.Unmarshaler
}

// MsgpCodec adapts one concrete MsgpValue type into a wire.Codec.
type MsgpCodec struct {
	typeName string
	match    func(v any) (MsgpValue, bool)
	zero     func() MsgpValue
}

// NewMsgpCodec builds a codec for a single concrete type. match
// reports whether v is (or embeds) that type; zero constructs a fresh
// instance for Decode to unmarshal into.
func NewMsgpCodec(typeName string, match func(any) (MsgpValue, bool), zero func() MsgpValue) *MsgpCodec {
	return &MsgpCodec{typeName: typeName, match: match, zero: zero}
}

func (c *MsgpCodec) Name() string { return "msgpack:" + c.typeName }

func (c *MsgpCodec) CanHandle(v any) bool {
	_, ok := c.match(v)
	return ok
}

func (c *MsgpCodec) Encode(v any, _ *Wire) (any, []Transferable, error) {
	mv, ok := c.match(v)
	if !ok {
		return nil, nil, errors.Errorf("msgpack codec %s: unexpected type %T", c.typeName, v)
	}
	b, err := mv.MarshalMsg(nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "msgpack encode")
	}
	return b, []Transferable{b}, nil
}

func (c *MsgpCodec) Decode(payload any, _ []Transferable, _ *Wire) (any, error) {
	buf, err := bytesFromPayload(payload)
	if err != nil {
		return nil, err
	}
	mv := c.zero()
	if _, err := mv.UnmarshalMsg(buf); err != nil {
		return nil, errors.Wrap(err, "msgpack decode")
	}
	return mv, nil
}

func bytesFromPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, errors.Wrap(err, "decode base64 payload")
		}
		return b, nil
	case nil:
		return nil, nil
	default:
		return nil, errors.Errorf("unexpected payload type %T", payload)
	}
}
