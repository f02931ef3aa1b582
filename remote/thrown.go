package remote

import (
	"github.com/pkg/errors"

	"github.com/meh/shumei/wire"
)

// Thrown is the error shape that crosses a remote-value link: a
// handler-side panic or error becomes a well-formed rejection on the
// proxy side rather than a protocol violation. Name and Stack are
// best-effort; only Message is guaranteed populated.
type Thrown struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (t *Thrown) Error() string {
	if t.Name != "" {
		return t.Name + ": " + t.Message
	}
	return t.Message
}

// ThrownError mints a *Thrown from err. It is the single construction
// point a handler loop calls before putting any reflective-operation
// error on the wire, so the proxy side always decodes a well-formed
// Thrown rather than an opaque, codec-less error value.
func ThrownError(err error) *Thrown {
	if err == nil {
		return nil
	}
	if t, ok := err.(*Thrown); ok {
		return t
	}
	th := &Thrown{Message: err.Error()}
	type causer interface{ Cause() error }
	root := err
	for {
		c, ok := root.(causer)
		if !ok {
			break
		}
		root = c.Cause()
	}
	th.Name = errTypeName(root)
	if st, ok := err.(interface {
		StackTrace() errors.StackTrace
	}); ok {
		th.Stack = formatStack(st.StackTrace())
	}
	return th
}

func errTypeName(err error) string {
	type named interface{ ErrorName() string }
	if n, ok := err.(named); ok {
		return n.ErrorName()
	}
	return "Error"
}

func formatStack(st errors.StackTrace) string {
	var out []byte
	for i, f := range st {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, []byte(errors.Errorf("%+v", f).Error())...)
	}
	return string(out)
}

// thrownCodec lets *Thrown cross the wire by its own fields rather than
// the generic reflect-struct codec, keeping Error()'s behavior intact
// on the decoding side (the generic codec would decode into a bare
// map, losing the error interface).
type thrownCodec struct{}

func (thrownCodec) Name() string { return "thrown" }

func (thrownCodec) CanHandle(v any) bool {
	_, ok := v.(*Thrown)
	return ok
}

func (thrownCodec) Encode(v any, _ *wire.Wire) (any, []wire.Transferable, error) {
	t, ok := v.(*Thrown)
	if !ok {
		return nil, nil, errors.Errorf("thrown codec: unexpected type %T", v)
	}
	return map[string]any{"name": t.Name, "message": t.Message, "stack": t.Stack}, nil, nil
}

func (thrownCodec) Decode(payload any, _ []wire.Transferable, _ *wire.Wire) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Errorf("thrown codec: unexpected payload %T", payload)
	}
	t := &Thrown{}
	if s, ok := m["name"].(string); ok {
		t.Name = s
	}
	if s, ok := m["message"].(string); ok {
		t.Message = s
	}
	if s, ok := m["stack"].(string); ok {
		t.Stack = s
	}
	return t, nil
}
