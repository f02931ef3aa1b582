package workeradapter

import (
	"context"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/wire"
)

// Entry is the function a dedicated worker runs. peer is its half of
// a fresh channel.Pair; the caller retains the other half.
type Entry func(ctx context.Context, peer *channel.Channel)

// Dedicated starts entry in a new goroutine, handing it one half of a
// freshly paired Channel, and returns the other half to the caller —
// the Go stand-in for `new Worker(url)` returning a port to the newly
// started worker.
func Dedicated(entry Entry, w *wire.Wire, extra channel.Extra) *channel.Channel {
	caller, worker := channel.Pair(w, extra)
	caller.Kind, worker.Kind = "dedicated", "dedicated"
	go entry(withKind(context.Background(), ContextDedicated), worker)
	return caller
}
