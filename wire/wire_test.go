package wire_test

import (
	"reflect"
	"testing"

	"github.com/meh/shumei/wire"
)

// TestPlainRoundTrip: for every structure-cloneable x,
// decode(encode(x)) is deep-equal to x (modulo the generic map/slice
// reconstruction a PLAIN envelope always produces for container
// types).
func TestPlainRoundTrip(t *testing.T) {
	w := wire.New()
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"int", 42, nil}, // checked specially below: in-process decode keeps the concrete int
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"map", map[string]any{"n": float64(42)}, map[string]any{"n": float64(42)}},
		{"slice", []any{float64(1), "skip", float64(2), "skip"}, []any{float64(1), "skip", float64(2), "skip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := w.Encode(tc.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := w.Decode(env)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tc.name == "int" {
				if got != 42 {
					t.Fatalf("got %v, want 42", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

type stubCodec struct{ n int }

func (stubCodec) Name() string { return "stub" }

func (stubCodec) CanHandle(v any) bool {
	_, ok := v.(*stubValue)
	return ok
}

func (stubCodec) Encode(v any, _ *wire.Wire) (any, []wire.Transferable, error) {
	sv := v.(*stubValue)
	return map[string]any{"n": sv.N}, []wire.Transferable{sv}, nil
}

func (stubCodec) Decode(payload any, _ []wire.Transferable, _ *wire.Wire) (any, error) {
	m := payload.(map[string]any)
	// Decode on the same Wire receives the live payload map, so n is
	// still the int Encode put there.
	return &stubValue{N: m["n"].(int)}, nil
}

type stubValue struct{ N int }

// TestCodecRoundTrip checks round-trip correctness for a registered
// Codec with CanHandle(x) true.
func TestCodecRoundTrip(t *testing.T) {
	w := wire.New()
	w.Register(stubCodec{})

	in := &stubValue{N: 7}
	env, err := w.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Tag != wire.TagEncoded || env.Codec != "stub" {
		t.Fatalf("expected an ENCODED stub envelope, got %+v", env)
	}

	out, err := w.Decode(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := out.(*stubValue)
	if !ok || got.N != in.N {
		t.Fatalf("got %#v, want equivalent of %#v", out, in)
	}
}

// TestTransferablesUnique: repeating the same transferable-bearing
// value in a tree must not duplicate it in the aggregated
// transferable list.
func TestTransferablesUnique(t *testing.T) {
	w := wire.New()
	w.Register(stubCodec{})

	shared := &stubValue{N: 1}
	env, err := w.Encode(map[string]any{"a": shared, "b": shared})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	xfer := wire.Transferables(env)
	if len(xfer) != 1 {
		t.Fatalf("expected exactly one deduplicated transferable, got %d: %#v", len(xfer), xfer)
	}
}

// TestUnknownCodecOnDecode ensures decoding an ENCODED envelope that
// names an unregistered codec returns an error rather than panicking.
func TestUnknownCodecOnDecode(t *testing.T) {
	w := wire.New()
	env := wire.Envelope{Tag: wire.TagEncoded, Codec: "nope"}
	if _, err := w.Decode(env); err == nil {
		t.Fatal("expected an error for an unregistered codec name")
	}
}
