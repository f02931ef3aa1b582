package remote

import (
	"github.com/pkg/errors"

	"github.com/meh/shumei/wire"
)

// requestCodec and responseCodec install the request/response
// protocol structs as named wire codecs. Val/Args/Result cross the
// wire individually encoded, not carried raw, so a marked value or a
// *Channel nested inside an RPC argument promotes exactly the way a
// top-level one would. The request/response
// envelope itself is a plain map so it round-trips identically
// in-process (where nested Envelopes survive as live Go values) and
// over a byte-framed Port (where they arrive as generic
// map[string]any and need wire.EnvelopeFromPayload to rebuild).

type requestCodec struct{}

func (requestCodec) Name() string { return "remote.request" }

func (requestCodec) CanHandle(v any) bool {
	_, ok := v.(request)
	return ok
}

func (requestCodec) Encode(v any, w *wire.Wire) (any, []wire.Transferable, error) {
	r, ok := v.(request)
	if !ok {
		return nil, nil, errors.Errorf("remote.request codec: unexpected type %T", v)
	}
	valEnv, err := w.Encode(r.Val)
	if err != nil {
		return nil, nil, errors.Wrap(err, "remote.request codec: encode val")
	}
	argEnvs := make([]wire.Envelope, len(r.Args))
	for i, a := range r.Args {
		ae, err := w.Encode(a)
		if err != nil {
			return nil, nil, errors.Wrap(err, "remote.request codec: encode arg")
		}
		argEnvs[i] = ae
	}
	payload := map[string]any{
		"id":   r.ID,
		"seq":  r.Seq,
		"op":   int(r.Op),
		"key":  r.Key,
		"val":  valEnv,
		"args": argEnvs,
	}
	return payload, nil, nil
}

func (requestCodec) Decode(payload any, _ []wire.Transferable, w *wire.Wire) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Errorf("remote.request codec: unexpected payload %T", payload)
	}
	val, err := decodeEmbedded(m["val"], w)
	if err != nil {
		return nil, err
	}
	args, err := decodeEmbeddedSlice(m["args"], w)
	if err != nil {
		return nil, err
	}
	return request{
		ID:   stringOf(m["id"]),
		Seq:  uint64Of(m["seq"]),
		Op:   Op(int64Of(m["op"])),
		Key:  stringOf(m["key"]),
		Val:  val,
		Args: args,
	}, nil
}

type responseCodec struct{}

func (responseCodec) Name() string { return "remote.response" }

func (responseCodec) CanHandle(v any) bool {
	_, ok := v.(response)
	return ok
}

func (responseCodec) Encode(v any, w *wire.Wire) (any, []wire.Transferable, error) {
	r, ok := v.(response)
	if !ok {
		return nil, nil, errors.Errorf("remote.response codec: unexpected type %T", v)
	}
	resultEnv, err := w.Encode(r.Result)
	if err != nil {
		return nil, nil, errors.Wrap(err, "remote.response codec: encode result")
	}
	payload := map[string]any{
		"id":     r.ID,
		"seq":    r.Seq,
		"result": resultEnv,
		"err":    r.ErrStr,
	}
	return payload, nil, nil
}

func (responseCodec) Decode(payload any, _ []wire.Transferable, w *wire.Wire) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Errorf("remote.response codec: unexpected payload %T", payload)
	}
	result, err := decodeEmbedded(m["result"], w)
	if err != nil {
		return nil, err
	}
	return response{
		ID:     stringOf(m["id"]),
		Seq:    uint64Of(m["seq"]),
		Result: result,
		ErrStr: stringOf(m["err"]),
	}, nil
}

// decodeEmbedded decodes a wire.Envelope nested inside another
// codec's own payload — a live Envelope value on an in-process Pair,
// or a generic map needing wire.EnvelopeFromPayload on a byte-framed
// Port.
func decodeEmbedded(v any, w *wire.Wire) (any, error) {
	env, ok := v.(wire.Envelope)
	if !ok {
		var err error
		env, err = wire.EnvelopeFromPayload(v)
		if err != nil {
			return nil, errors.Wrap(err, "remote: decode embedded envelope")
		}
	}
	return w.Decode(env)
}

func decodeEmbeddedSlice(v any, w *wire.Wire) ([]any, error) {
	switch s := v.(type) {
	case []wire.Envelope:
		out := make([]any, len(s))
		for i, env := range s {
			dv, err := w.Decode(env)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case []any:
		out := make([]any, len(s))
		for i, raw := range s {
			dv, err := decodeEmbedded(raw, w)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	default:
		return nil, nil
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func uint64Of(v any) uint64 {
	switch n := v.(type) {
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

func int64Of(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
