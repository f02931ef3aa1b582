package mailbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/mailbox"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func isNumber(v any) bool {
	_, ok := v.(int)
	return ok
}

// TestSelectiveReceive: enqueue 1, "skip", 2, "skip"; match(isNumber)
// yields 1 then 2 in order; a following Recv yields the first
// un-returned "skip".
func TestSelectiveReceive(t *testing.T) {
	q := make(chan any, 8)
	mb := mailbox.Wrap(channel.FromQueue(q))
	defer mb.Close()

	for _, v := range []any{1, "skip", 2, "skip"} {
		if err := mb.Send(v); err != nil {
			t.Fatalf("send(%v): %v", v, err)
		}
	}

	ctx := testCtx(t)
	first, err := mb.Match(ctx, isNumber)
	if err != nil || first != 1 {
		t.Fatalf("first match = (%v, %v), want (1, nil)", first, err)
	}
	second, err := mb.Match(ctx, isNumber)
	if err != nil || second != 2 {
		t.Fatalf("second match = (%v, %v), want (2, nil)", second, err)
	}
	third, err := mb.Recv(ctx)
	if err != nil || third != "skip" {
		t.Fatalf("recv = (%v, %v), want (\"skip\", nil)", third, err)
	}
}

// TestMatchWaitsForArrival exercises a Match registered before its
// matching message arrives, not just one satisfied from the buffer.
func TestMatchWaitsForArrival(t *testing.T) {
	q := make(chan any, 1)
	mb := mailbox.Wrap(channel.FromQueue(q))
	defer mb.Close()

	result := make(chan any, 1)
	go func() {
		v, err := mb.Match(testCtx(t), isNumber)
		if err != nil {
			result <- err
			return
		}
		result <- v
	}()

	time.Sleep(20 * time.Millisecond) // let Match register its waiter first
	if err := mb.Send("skip"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := mb.Send(9); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case v := <-result:
		if v != 9 {
			t.Fatalf("got %v, want 9", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Match never resolved")
	}
}

// TestClosePropagatesToWaiters ensures a pending Match unblocks with an
// error once the underlying channel closes.
func TestClosePropagatesToWaiters(t *testing.T) {
	q := make(chan any, 1)
	mb := mailbox.Wrap(channel.FromQueue(q))

	done := make(chan error, 1)
	go func() {
		_, err := mb.Match(testCtx(t), isNumber)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	mb.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error once the mailbox closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Match did not unblock after Close")
	}
}
