package channel_test

import (
	"testing"
	"time"

	"github.com/meh/shumei/channel"
)

// TestBroadcastSkipsSender: a publish on a named bus reaches every
// other subscriber and never echoes back to the publisher.
func TestBroadcastSkipsSender(t *testing.T) {
	w := channel.NewDefaultWire()
	pub := channel.Broadcast("fanout-test", w, channel.Extra{})
	sub1 := channel.Broadcast("fanout-test", w, channel.Extra{})
	sub2 := channel.Broadcast("fanout-test", w, channel.Extra{})
	defer pub.Close()
	defer sub1.Close()
	defer sub2.Close()

	if err := pub.Send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx := testCtx(t)
	for i, sub := range []*channel.Channel{sub1, sub2} {
		v, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("sub%d recv: %v", i+1, err)
		}
		if v != "hello" {
			t.Fatalf("sub%d got %#v, want \"hello\"", i+1, v)
		}
	}

	echo := make(chan any, 1)
	go func() {
		if v, err := pub.Recv(testCtx(t)); err == nil {
			echo <- v
		}
	}()
	select {
	case v := <-echo:
		t.Fatalf("publisher heard its own message: %#v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSelectFanin: values sent on distinct inputs all surface through
// one Fanin, each tagged with the channel it arrived on.
func TestSelectFanin(t *testing.T) {
	w := channel.NewDefaultWire()
	a1, b1 := channel.Pair(w, channel.Extra{})
	a2, b2 := channel.Pair(w, channel.Extra{})
	defer a1.Close()
	defer a2.Close()

	f := channel.Select(b1, b2)
	defer f.Close()

	if err := a1.Send("one"); err != nil {
		t.Fatalf("send one: %v", err)
	}
	if err := a2.Send("two"); err != nil {
		t.Fatalf("send two: %v", err)
	}

	ctx := testCtx(t)
	got := map[any]*channel.Channel{}
	for i := 0; i < 2; i++ {
		r, err := f.Recv(ctx)
		if err != nil {
			t.Fatalf("fanin recv[%d]: %v", i, err)
		}
		got[r.Value] = r.Channel
	}
	if got["one"] != b1 || got["two"] != b2 {
		t.Fatalf("fanin mislabeled its inputs: %#v", got)
	}
}

// TestMulticastFanout: one Send reaches every member channel's peer.
func TestMulticastFanout(t *testing.T) {
	w := channel.NewDefaultWire()
	a1, b1 := channel.Pair(w, channel.Extra{})
	a2, b2 := channel.Pair(w, channel.Extra{})

	m := channel.NewMulticast(a1, a2)
	defer m.Close()

	if err := m.Send(float64(7)); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx := testCtx(t)
	for i, b := range []*channel.Channel{b1, b2} {
		v, err := b.Recv(ctx)
		if err != nil {
			t.Fatalf("member %d recv: %v", i+1, err)
		}
		if v != float64(7) {
			t.Fatalf("member %d got %#v, want 7", i+1, v)
		}
	}
}
