package wire

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// json is the fast drop-in jsoniter codec used throughout this
// package and by channel's frame (de)serialization.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is the byte form of an Envelope as it crosses a real,
// out-of-process Port. In-process ports may skip this and hand the
// Envelope across directly (see channel.pipePort).
type Frame []byte

// Marshal serializes env to its wire Frame.
func Marshal(env Envelope) (Frame, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "wire: marshal envelope")
	}
	return Frame(b), nil
}

// Unmarshal reconstructs an Envelope from a Frame. Transferables are
// not carried inside the frame bytes, so the returned Envelope has
// none; WithTransferables attaches a list obtained out-of-band.
func Unmarshal(f Frame) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(f, &raw); err != nil {
		return Envelope{}, errors.Wrap(err, "wire: unmarshal envelope")
	}
	return raw.toEnvelope()
}

// WithTransferables reattaches xs to env's root, e.g. after a Port
// reconstitutes them out-of-band from the frame's accompanying
// transferable list.
func WithTransferables(env Envelope, xs []Transferable) Envelope {
	env.xfer = xs
	return env
}

// EnvelopeFromPayload reconstructs an Envelope from data that has
// already been generically JSON-decoded — e.g. a child envelope
// nested inside another codec's own ENCODED payload, which the wire
// layer's own Unmarshal does not recurse into (an ENCODED payload is
// opaque to everyone but its own codec). A codec whose payload embeds
// further Envelopes (see remote's request/response codecs) calls this
// to rebuild them on the byte-framed path; on an in-process Pair the
// embedded Envelope already arrived as a live Go value and needs no
// reconstruction.
func EnvelopeFromPayload(v any) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "wire: remarshal payload")
	}
	return Unmarshal(Frame(b))
}

type rawEnvelope struct {
	Tag   Tag                 `json:"tag"`
	Codec string              `json:"codec,omitempty"`
	Value jsoniter.RawMessage `json:"value"`
}

func (r rawEnvelope) toEnvelope() (Envelope, error) {
	env := Envelope{Tag: r.Tag, Codec: r.Codec}
	if r.Tag == TagEncoded {
		var v any
		if len(r.Value) > 0 {
			if err := json.Unmarshal(r.Value, &v); err != nil {
				return Envelope{}, errors.Wrap(err, "wire: unmarshal encoded payload")
			}
		}
		env.Value = v
		return env, nil
	}

	trimmed := firstNonSpace(r.Value)
	switch trimmed {
	case '{':
		var m map[string]jsoniter.RawMessage
		if err := json.Unmarshal(r.Value, &m); err != nil {
			return Envelope{}, errors.Wrap(err, "wire: unmarshal plain object")
		}
		out := make(map[string]Envelope, len(m))
		for k, raw := range m {
			var childRaw rawEnvelope
			if err := json.Unmarshal(raw, &childRaw); err != nil {
				return Envelope{}, errors.Wrap(err, "wire: unmarshal plain object child")
			}
			child, err := childRaw.toEnvelope()
			if err != nil {
				return Envelope{}, err
			}
			out[k] = child
		}
		env.Value = out
	case '[':
		var arr []jsoniter.RawMessage
		if err := json.Unmarshal(r.Value, &arr); err != nil {
			return Envelope{}, errors.Wrap(err, "wire: unmarshal plain array")
		}
		out := make([]Envelope, len(arr))
		for i, raw := range arr {
			var childRaw rawEnvelope
			if err := json.Unmarshal(raw, &childRaw); err != nil {
				return Envelope{}, errors.Wrap(err, "wire: unmarshal plain array child")
			}
			child, err := childRaw.toEnvelope()
			if err != nil {
				return Envelope{}, err
			}
			out[i] = child
		}
		env.Value = out
	default:
		var v any
		if len(r.Value) > 0 {
			if err := json.Unmarshal(r.Value, &v); err != nil {
				return Envelope{}, errors.Wrap(err, "wire: unmarshal plain scalar")
			}
		}
		env.Value = v
	}
	return env, nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}
