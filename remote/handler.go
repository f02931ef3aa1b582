package remote

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/rlog"
)

// Handler owns a Go value and answers GET/SET/DELETE/APPLY/CONSTRUCT
// requests against it by reflection — the server side of a
// transparent remote value.
type Handler struct {
	target reflect.Value
	ch     *channel.Channel
	cancel context.CancelFunc
}

// Spawn starts a Handler loop over v, reading requests from ch and
// writing matched responses back, until ch closes or Close is called.
func Spawn(v any, ch *channel.Channel) (*Handler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{target: reflect.ValueOf(v), ch: ch, cancel: cancel}
	go h.loop(ctx)
	return h, nil
}

func (h *Handler) loop(ctx context.Context) {
	for {
		v, err := h.ch.Recv(ctx)
		if err != nil {
			return
		}
		req, ok := v.(request)
		if !ok {
			rlog.Warnf("remote: handler received non-request value %T, ignoring", v)
			continue
		}
		resp := h.handle(req)
		if err := h.ch.Send(resp); err != nil {
			rlog.Warnf("remote: handler response send failed: %v", err)
			return
		}
	}
}

func (h *Handler) handle(req request) response {
	resp := response{ID: req.ID, Seq: req.Seq}
	result, err := h.dispatchSafe(req)
	if err != nil {
		resp.ErrStr = err.Error()
		resp.Result = ThrownError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// dispatchSafe converts a reflective panic (wrong argument kind, call
// on a nil func, ...) into an ordinary error, so it crosses back to
// the proxy as a Thrown instead of killing the handler loop.
func (h *Handler) dispatchSafe(req request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrapf(e, "remote: %s panicked", req.Op)
				return
			}
			err = errors.Errorf("remote: %s panicked: %v", req.Op, r)
		}
	}()
	return h.dispatch(req)
}

func (h *Handler) dispatch(req request) (any, error) {
	switch req.Op {
	case OpGet:
		return h.get(req.Key)
	case OpSet:
		return nil, h.set(req.Key, req.Val)
	case OpDelete:
		return nil, h.delete(req.Key)
	case OpApply:
		return h.apply(req.Args)
	case OpConstruct:
		return h.construct(req.Args)
	default:
		return nil, errors.Errorf("remote: unknown op %v", req.Op)
	}
}

func (h *Handler) fieldOrElem(key string) (reflect.Value, error) {
	v := h.target
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		f := v.FieldByName(key)
		if !f.IsValid() {
			return reflect.Value{}, errors.Errorf("remote: no field %q", key)
		}
		return f, nil
	case reflect.Map:
		mv := v.MapIndex(reflect.ValueOf(key))
		if !mv.IsValid() {
			return reflect.Value{}, errors.Errorf("remote: no key %q", key)
		}
		return mv, nil
	default:
		return reflect.Value{}, errors.Errorf("remote: target kind %s has no properties", v.Kind())
	}
}

func (h *Handler) get(key string) (any, error) {
	f, err := h.fieldOrElem(key)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

func (h *Handler) set(key string, val any) error {
	v := h.target
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		f := v.FieldByName(key)
		if !f.IsValid() || !f.CanSet() {
			return errors.Errorf("remote: cannot set field %q", key)
		}
		f.Set(reflect.ValueOf(val))
		return nil
	case reflect.Map:
		v.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(val))
		return nil
	default:
		return errors.Errorf("remote: target kind %s has no settable properties", v.Kind())
	}
}

func (h *Handler) delete(key string) error {
	v := h.target
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Map {
		return errors.Errorf("remote: delete only supported on map targets, got %s", v.Kind())
	}
	v.SetMapIndex(reflect.ValueOf(key), reflect.Value{})
	return nil
}

func (h *Handler) callable() (reflect.Value, error) {
	v := h.target
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, errors.Errorf("remote: target kind %s is not callable", v.Kind())
	}
	return v, nil
}

func (h *Handler) apply(args []any) (any, error) {
	fn, err := h.callable()
	if err != nil {
		return nil, err
	}
	ft := fn.Type()
	if !ft.IsVariadic() && len(args) != ft.NumIn() {
		return nil, errors.Errorf("remote: apply with %d args, target takes %d", len(args), ft.NumIn())
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = argValue(ft, i, a)
	}
	out := fn.Call(in)
	return resultsToAny(out)
}

// argValue coerces a decoded argument to the target's parameter type.
// A byte-framed hop widens every JSON number to float64; Convert
// narrows it back when the parameter wants an int or a float32.
func argValue(ft reflect.Type, i int, a any) reflect.Value {
	var pt reflect.Type
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		pt = ft.In(ft.NumIn() - 1).Elem()
	} else if i < ft.NumIn() {
		pt = ft.In(i)
	}
	if a == nil {
		if pt != nil {
			return reflect.Zero(pt)
		}
		return reflect.Zero(reflect.TypeOf((*any)(nil)).Elem())
	}
	v := reflect.ValueOf(a)
	if pt != nil && v.Type() != pt && v.Type().ConvertibleTo(pt) {
		switch pt.Kind() {
		case reflect.String:
			// ConvertibleTo allows int→string rune conversion; that is
			// never what a caller meant, so leave mismatches to Call.
		default:
			return v.Convert(pt)
		}
	}
	return v
}

// construct is APPLY's counterpart for factory-shaped targets: a func
// returning a fresh value (optionally with a trailing error), the Go
// stand-in for `new Target(...)`.
func (h *Handler) construct(args []any) (any, error) {
	return h.apply(args)
}

func resultsToAny(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if err, ok := last.Interface().(error); ok {
			nilable := last.Kind() == reflect.Ptr || last.Kind() == reflect.Interface ||
				last.Kind() == reflect.Chan || last.Kind() == reflect.Func ||
				last.Kind() == reflect.Map || last.Kind() == reflect.Slice
			if !nilable || !last.IsNil() {
				return nil, err
			}
		}
		vals := make([]any, len(out)-1)
		for i := 0; i < len(out)-1; i++ {
			vals[i] = out[i].Interface()
		}
		if len(vals) == 1 {
			return vals[0], nil
		}
		return vals, nil
	}
}

// Close tears down the handler loop and its channel half. Ownership
// is explicit: no weak refs, no background GC of proxies.
func (h *Handler) Close() error {
	h.cancel()
	return h.ch.Close()
}
