package stage

import (
	"context"

	"github.com/meh/shumei/mailbox"
	"github.com/meh/shumei/rlog"
)

// Actor is the narrow handle to an addressable routine: a proxy whose
// Send(msg) delivers. Distinct from the remote package's
// get/set/apply/construct Proxy, which is an independent protocol
// layered over any channel.
type Actor interface {
	Address() Address
	Send(msg any) error
}

// Filter is a selective-receive predicate a SpawnFunc returns to pick
// its next message.
type Filter func(msg any) bool

// SpawnFunc is a step-function actor: a cooperative routine cast as
// an explicit state machine. Called with the previous message (nil on
// the first call, step 0); returns the predicate to await next (nil
// means "await anything") and whether the routine has terminated.
type SpawnFunc func(self Address, step int, msg any) (next Filter, done bool)

// LocalActor runs a SpawnFunc engine loop consuming its own mailbox.
type LocalActor struct {
	addr Address
	mb   *mailbox.Mailbox
}

func (a *LocalActor) Address() Address { return a.addr }

func (a *LocalActor) Send(msg any) error { return a.mb.Send(msg) }

// run drives the engine loop: advance with the previous message, stop
// if done, otherwise await a selective or unconditional receive, loop.
func (a *LocalActor) run(ctx context.Context, fn SpawnFunc) {
	var msg any
	for step := 0; ; step++ {
		next, done := fn(a.addr, step, msg)
		if done {
			return
		}
		var (
			m   any
			err error
		)
		if next != nil {
			m, err = a.mb.Match(ctx, mailbox.Filter(next))
		} else {
			m, err = a.mb.Recv(ctx)
		}
		if err != nil {
			rlog.Infof("stage: actor %s terminating: %v", a.addr, err)
			return
		}
		msg = m
	}
}

// RemoteActor is an address-only handle to an actor living on another
// stage; Send routes by the address's stage through Runtime.Send.
type RemoteActor struct {
	addr Address
	rt   *Runtime
}

func (a *RemoteActor) Address() Address { return a.addr }

func (a *RemoteActor) Send(msg any) error { return a.rt.Send(a.addr, msg) }
