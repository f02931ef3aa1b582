package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/remote"
)

// TestFunctionOverTheWire: register a function on side A, obtain a
// proxy on side B, Apply(2, 3) returns 5.
func TestFunctionOverTheWire(t *testing.T) {
	w := channel.NewDefaultWire()
	remote.RegisterCodec(w)
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	add := func(x, y int) int { return x + y }
	h, err := remote.Spawn(add, a)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer h.Close()

	p := remote.NewProxy(b)
	defer p.Close()

	got, err := p.Apply(2, 3)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	n, ok := got.(int)
	if !ok || n != 5 {
		t.Fatalf("got %#v, want 5", got)
	}
}

// TestRemoteThrow: a handler function that errors rejects the proxy
// call with a preserved message.
func TestRemoteThrow(t *testing.T) {
	w := channel.NewDefaultWire()
	remote.RegisterCodec(w)
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	boom := func() (int, error) { return 0, errors.New("boom") }
	h, err := remote.Spawn(boom, a)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer h.Close()

	p := remote.NewProxy(b)
	defer p.Close()

	_, err = p.Apply()
	if err == nil {
		t.Fatal("expected an error")
	}
	thrown, ok := err.(*remote.Thrown)
	if !ok {
		t.Fatalf("expected *remote.Thrown, got %T (%v)", err, err)
	}
	if thrown.Message != "boom" {
		t.Fatalf("message = %q, want %q", thrown.Message, "boom")
	}
}

// TestGetSetDelete exercises the non-Apply operations against a map
// target.
func TestGetSetDelete(t *testing.T) {
	w := channel.NewDefaultWire()
	remote.RegisterCodec(w)
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	target := map[string]any{"x": 1}
	h, err := remote.Spawn(target, a)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer h.Close()

	p := remote.NewProxy(b)
	defer p.Close()

	got, err := p.Get("x")
	if err != nil || got != 1 {
		t.Fatalf("get = (%v, %v), want (1, nil)", got, err)
	}
	if err := p.Set("y", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := p.Get("y"); err != nil || got != 2 {
		t.Fatalf("get y = (%v, %v), want (2, nil)", got, err)
	}
	if err := p.Delete("x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := p.Get("x"); err == nil {
		t.Fatal("expected an error reading a deleted key")
	}
}

// TestMarkPromotion exercises the marker-based promotion rule: a
// Mark()ed value crossing the wire decodes as a Proxy, not plain data.
func TestMarkPromotion(t *testing.T) {
	w := channel.NewDefaultWire()
	remote.RegisterCodec(w)
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	target := map[string]any{"n": 1}
	if err := a.Send(remote.Mark(target)); err != nil {
		t.Fatalf("send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	p, ok := got.(remote.Proxy)
	if !ok {
		t.Fatalf("got %T, want a remote.Proxy", got)
	}
	defer p.Close()

	n, err := p.Get("n")
	if err != nil || n != 1 {
		t.Fatalf("proxy get = (%v, %v), want (1, nil)", n, err)
	}
}
