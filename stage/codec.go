package stage

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meh/shumei/wire"
)

// protocolCodec registers the four stage-link message kinds as named
// wire codecs. Without one, the generic plain-object encoder (wire.go)
// would round-trip them as bare map[string]any — structurally correct
// but unusable by the router's type switch, which needs the concrete
// Go type back. Each codec's payload is the struct itself on an
// in-process Pair (no serialization occurs, so decode is a type
// assertion); a byte-framed Port marshals that payload through JSON,
// so decode also accepts the resulting map[string]any and rebuilds
// the struct from it.
type protocolCodec[T any] struct {
	name   string
	toType func(map[string]any) (T, error)
}

func (c protocolCodec[T]) Name() string { return c.name }

func (c protocolCodec[T]) CanHandle(v any) bool {
	_, ok := v.(T)
	return ok
}

func (c protocolCodec[T]) Encode(v any, _ *wire.Wire) (any, []wire.Transferable, error) {
	t, ok := v.(T)
	if !ok {
		return nil, nil, errors.Errorf("%s codec: unexpected type %T", c.name, v)
	}
	return t, nil, nil
}

func (c protocolCodec[T]) Decode(payload any, _ []wire.Transferable, _ *wire.Wire) (any, error) {
	if t, ok := payload.(T); ok {
		return t, nil
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Errorf("%s codec: unexpected payload %T", c.name, payload)
	}
	return c.toType(m)
}

func addressFromAny(v any) Address {
	m, ok := v.(map[string]any)
	if !ok {
		return Address{}
	}
	return Address{Actor: uuidFromAny(m["actor"]), Stage: uuidFromAny(m["stage"])}
}

func uuidFromAny(v any) uuid.UUID {
	s, _ := v.(string)
	id, _ := uuid.Parse(s)
	return id
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func uint64Field(m map[string]any, key string) uint64 {
	switch n := m[key].(type) {
	case float64:
		return uint64(n)
	case uint64:
		return n
	case int:
		return uint64(n)
	default:
		return 0
	}
}

// RegisterCodecs installs the STAGE/WHOIS_ACTOR/ACTOR/SEND codecs into
// w, preserving concrete Go types across both in-process and
// byte-framed links.
func RegisterCodecs(w *wire.Wire) {
	w.Register(protocolCodec[StageIdent]{
		name: "stage.ident",
		toType: func(m map[string]any) (StageIdent, error) {
			return StageIdent{ID: uuidFromAny(m["id"])}, nil
		},
	})
	w.Register(protocolCodec[WhoisActor]{
		name: "stage.whois",
		toType: func(m map[string]any) (WhoisActor, error) {
			return WhoisActor{ReqID: stringField(m, "reqId"), Whois: stringField(m, "whois")}, nil
		},
	})
	w.Register(protocolCodec[ActorReply]{
		name: "stage.actor",
		toType: func(m map[string]any) (ActorReply, error) {
			return ActorReply{
				ReqID: stringField(m, "reqId"),
				Actor: addressFromAny(m["actor"]),
				Found: boolField(m, "found"),
			}, nil
		},
	})
	w.Register(sendMsgCodec{})
}

// sendMsgCodec is SendMsg's own codec rather than a protocolCodec
// instance: its Message field crosses the wire individually encoded
// (like remote's request/response Val/Args), so a marked value or a
// *Channel handed to an actor promotes correctly instead of arriving
// as inert cloned data.
type sendMsgCodec struct{}

func (sendMsgCodec) Name() string { return "stage.send" }

func (sendMsgCodec) CanHandle(v any) bool {
	_, ok := v.(SendMsg)
	return ok
}

func (sendMsgCodec) Encode(v any, w *wire.Wire) (any, []wire.Transferable, error) {
	m, ok := v.(SendMsg)
	if !ok {
		return nil, nil, errors.Errorf("stage.send codec: unexpected type %T", v)
	}
	msgEnv, err := w.Encode(m.Message)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stage.send codec: encode message")
	}
	payload := map[string]any{
		"sender":  m.Sender,
		"seq":     m.Seq,
		"to":      m.To,
		"message": msgEnv,
	}
	return payload, nil, nil
}

func (sendMsgCodec) Decode(payload any, _ []wire.Transferable, w *wire.Wire) (any, error) {
	pm, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Errorf("stage.send codec: unexpected payload %T", payload)
	}
	to := pm["to"]
	addr, ok := to.(Address)
	if !ok {
		addr = addressFromAny(to)
	}
	msg, err := decodeEmbedded(pm["message"], w)
	if err != nil {
		return nil, err
	}
	return SendMsg{
		Sender:  stringField(pm, "sender"),
		Seq:     uint64Field(pm, "seq"),
		To:      addr,
		Message: msg,
	}, nil
}

// decodeEmbedded decodes a wire.Envelope nested inside another
// codec's own payload, mirroring remote.decodeEmbedded.
func decodeEmbedded(v any, w *wire.Wire) (any, error) {
	env, ok := v.(wire.Envelope)
	if !ok {
		var err error
		env, err = wire.EnvelopeFromPayload(v)
		if err != nil {
			return nil, errors.Wrap(err, "stage: decode embedded envelope")
		}
	}
	return w.Decode(env)
}
