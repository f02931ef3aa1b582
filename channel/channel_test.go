package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/meh/shumei/channel"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestPairEcho sends {n: 42} on one half of a Pair and receives it on
// the other.
func TestPairEcho(t *testing.T) {
	w := channel.NewDefaultWire()
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	// An in-process Pair moves Envelopes by reference (no JSON
	// round-trip), so a leaf scalar keeps its concrete Go type rather
	// than widening to float64 the way a byte-framed Port's decode
	// would; float64 here keeps the assertion true either way.
	if err := a.Send(map[string]any{"n": float64(42)}); err != nil {
		t.Fatalf("send: %v", err)
	}
	v, err := b.Recv(testCtx(t))
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["n"] != float64(42) {
		t.Fatalf("got %#v, want map[n:42]", v)
	}
}

// TestFIFOOrder: values sent in order on one half arrive in the same
// order on the other.
func TestFIFOOrder(t *testing.T) {
	w := channel.NewDefaultWire()
	a, b := channel.Pair(w, channel.Extra{})
	defer a.Close()
	defer b.Close()

	want := []any{float64(1), float64(2), float64(3), float64(4)}
	for _, v := range want {
		if err := a.Send(v); err != nil {
			t.Fatalf("send(%v): %v", v, err)
		}
	}
	ctx := testCtx(t)
	for i, w := range want {
		got, err := b.Recv(ctx)
		if err != nil {
			t.Fatalf("recv[%d]: %v", i, err)
		}
		if got != w {
			t.Fatalf("recv[%d] = %v, want %v", i, got, w)
		}
	}
}

// TestCloseUnblocksRecv verifies a blocked Recv observes the peer
// closing rather than hanging forever.
func TestCloseUnblocksRecv(t *testing.T) {
	w := channel.NewDefaultWire()
	a, b := channel.Pair(w, channel.Extra{})
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		_, err := b.Recv(testCtx(t))
		done <- err
	}()

	a.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error once the peer closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

// TestFromQueueBypassesWire confirms FromQueue moves values without
// any codec round-trip (the no-serialization direct-queue path).
func TestFromQueueBypassesWire(t *testing.T) {
	q := make(chan any, 1)
	ch := channel.FromQueue(q)
	defer ch.Close()

	type notClonable struct{ F func() }
	v := notClonable{F: func() {}}
	if err := ch.Send(v); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := ch.Recv(testCtx(t))
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	nv, ok := got.(notClonable)
	if !ok || nv.F == nil {
		t.Fatalf("expected the exact struct (with its func field) to survive, got %#v", got)
	}
}
