package stage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cuckoo "github.com/seiflotfy/cuckoofilter"
	"golang.org/x/sync/singleflight"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/config"
	"github.com/meh/shumei/housekeep"
	"github.com/meh/shumei/mailbox"
	"github.com/meh/shumei/metrics"
	"github.com/meh/shumei/remote"
	"github.com/meh/shumei/rlog"
	"github.com/meh/shumei/wire"
	"github.com/meh/shumei/workeradapter"
)

// hkOnce starts the package-wide housekeep.DefaultHK loop the first
// time any Runtime registers a job against it.
var hkOnce sync.Once

// Runtime is a live stage: it owns id, names, actors, stage links,
// and a readiness latch. Callers that want the package singleton use
// Current(); anything wanting an independent instance (tests,
// multi-stage processes) calls New directly.
type Runtime struct {
	id   uuid.UUID
	wire *wire.Wire

	mu         sync.RWMutex
	names      map[string]uuid.UUID
	actors     map[uuid.UUID]Actor
	links      map[uuid.UUID]*link
	parentLink *link

	readyOnce sync.Once

	mb   *mailbox.Mailbox
	seen *cuckoo.Filter
	seq  uint64

	resolve singleflight.Group
}

// New constructs an independent Runtime with its own wire codec
// registry (buffer, port, remote-value and thrown codecs already
// registered).
func New() *Runtime {
	w := channel.NewDefaultWire()
	remote.RegisterCodec(w)
	RegisterCodecs(w)
	rt := &Runtime{
		id:     uuid.New(),
		wire:   w,
		names:  make(map[string]uuid.UUID),
		actors: make(map[uuid.UUID]Actor),
		links:  make(map[uuid.UUID]*link),
		mb:     mailbox.Wrap(channel.FromQueue(make(chan any, 256))),
		seen:   cuckoo.NewFilter(config.Default().Broadcast.SeenCapacity),
	}
	hkOnce.Do(func() { go housekeep.Run() })
	housekeep.Reg(rt.id.String()+housekeep.NameSuffix, rt.hkLogProxies, config.Default().Housekeep.ProxyLogInterval)
	return rt
}

// hkLogProxies is a housekeep.Func: it never reaps, only observes,
// logging the process-wide live remote.Proxy count on a fixed
// cadence.
func (rt *Runtime) hkLogProxies() time.Duration {
	if n := remote.ActiveProxies(); n > 0 {
		rlog.Infof("stage %s: %d live remote proxies", rt.id, n)
	}
	return config.Default().Housekeep.ProxyLogInterval
}

var (
	currentOnce sync.Once
	current     *Runtime
)

// Current returns the process-wide Runtime singleton, constructing it
// on first use.
func Current() *Runtime {
	currentOnce.Do(func() { current = New() })
	return current
}

// ID is the stage's own globally unique identity.
func (rt *Runtime) ID() uuid.UUID { return rt.id }

// Wire exposes the codec registry this Runtime's channels/links encode
// through, for callers that want to register additional codecs before
// first use.
func (rt *Runtime) Wire() *wire.Wire { return rt.wire }

// Ready marks the stage ready exactly once; readiness re-sends a
// STAGE{id} packet to the parent link, signaling a spawner that its
// child has completed boot. Duplicate calls are idempotent.
func (rt *Runtime) Ready() {
	rt.readyOnce.Do(func() {
		rt.mu.RLock()
		pl := rt.parentLink
		rt.mu.RUnlock()
		if pl != nil {
			if err := pl.ch.Send(StageIdent{ID: rt.id}); err != nil {
				rlog.Warnf("stage: ready announcement failed: %v", err)
			}
		}
	})
}

// Register creates a local actor running fn, installing name in the
// stage-local alias map (name may be empty, in which case the actor is
// reachable only by address, as with Spawn).
func (rt *Runtime) Register(name string, fn SpawnFunc) (Address, error) {
	id := uuid.New()
	addr := Address{Actor: id, Stage: rt.id}
	la := &LocalActor{addr: addr, mb: mailbox.Wrap(channel.FromQueue(make(chan any, 64)))}

	rt.mu.Lock()
	rt.actors[id] = la
	if name != "" {
		rt.names[name] = id
	}
	rt.mu.Unlock()
	metrics.ActorsRegistered.WithLabelValues(rt.id.String()).Inc()

	go func() {
		la.run(context.Background(), fn)
		rt.mu.Lock()
		delete(rt.actors, id)
		if name != "" {
			delete(rt.names, name)
		}
		rt.mu.Unlock()
		metrics.ActorsRegistered.WithLabelValues(rt.id.String()).Dec()
	}()
	return addr, nil
}

// Spawn registers an unnamed actor, reachable only by address.
func (rt *Runtime) Spawn(fn SpawnFunc) (Address, error) {
	return rt.Register("", fn)
}

// Actor resolves id to a locally cached handle, or broadcasts
// WHOIS_ACTOR and awaits the first matching ACTOR reply, caching the
// result.
func (rt *Runtime) Actor(id uuid.UUID) (Actor, error) {
	rt.mu.RLock()
	if a, ok := rt.actors[id]; ok {
		rt.mu.RUnlock()
		return a, nil
	}
	rt.mu.RUnlock()
	return rt.resolveByWhois(id.String())
}

// ActorByName resolves a stage-local-or-remote alias the same way
// Actor resolves a UUID: a remote WHOIS_ACTOR may resolve a name to a
// fully-qualified address.
func (rt *Runtime) ActorByName(name string) (Actor, error) {
	rt.mu.RLock()
	if id, ok := rt.names[name]; ok {
		a := rt.actors[id]
		rt.mu.RUnlock()
		return a, nil
	}
	rt.mu.RUnlock()
	return rt.resolveByWhois(name)
}

func (rt *Runtime) resolveByWhois(whois string) (Actor, error) {
	v, err, _ := rt.resolve.Do(whois, func() (any, error) {
		rt.mu.RLock()
		links := make([]*link, 0, len(rt.links))
		for _, l := range rt.links {
			links = append(links, l)
		}
		rt.mu.RUnlock()
		if len(links) == 0 {
			return nil, unknownActor(Address{})
		}

		reqID := uuid.NewString()
		for _, l := range links {
			if err := l.ch.Send(WhoisActor{ReqID: reqID, Whois: whois}); err != nil {
				rlog.Warnf("stage: whois broadcast failed: %v", err)
			}
		}

		resp, err := rt.mb.Match(context.Background(), func(v any) bool {
			ar, ok := v.(ActorReply)
			return ok && ar.ReqID == reqID
		})
		if err != nil {
			return nil, err
		}
		ar := resp.(ActorReply)
		if !ar.Found {
			return nil, unknownActor(Address{})
		}
		ra := &RemoteActor{addr: ar.Actor, rt: rt}
		rt.mu.Lock()
		rt.actors[ar.Actor.Actor] = ra
		rt.mu.Unlock()
		return ra, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Actor), nil
}

// Send delivers msg to to, locally, by direct link, or (last resort)
// by broadcast.
func (rt *Runtime) Send(to Address, msg any) error {
	if to.Stage == rt.id {
		rt.mu.RLock()
		a, ok := rt.actors[to.Actor]
		rt.mu.RUnlock()
		if !ok {
			return unknownActor(to)
		}
		return a.Send(msg)
	}

	rt.mu.RLock()
	l, ok := rt.links[to.Stage]
	rt.mu.RUnlock()
	sm := SendMsg{Sender: rt.id.String(), Seq: atomic.AddUint64(&rt.seq, 1), To: to, Message: msg}
	if ok {
		return l.ch.Send(sm)
	}
	rt.broadcastSend(nil, sm)
	return nil
}

// Dedicated starts a child stage in a new goroutine via
// workeradapter.Dedicated, links it as a child, and returns the
// child's stage id once the STAGE handshake completes.
func (rt *Runtime) Dedicated(childFn func(child *Runtime)) (uuid.UUID, error) {
	caller := workeradapter.Dedicated(func(_ context.Context, peer *channel.Channel) {
		child := New()
		if _, err := child.addLink(peer, true); err != nil {
			rlog.Warnf("stage: dedicated child link failed: %v", err)
			return
		}
		childFn(child)
	}, rt.wire, channel.Extra{})

	l, err := rt.addLink(caller, false)
	if err != nil {
		return uuid.Nil, err
	}
	return l.peerStage, nil
}

// Shared joins a shared-worker stage previously started with
// ListenShared, linking it as this Runtime's parent.
func (rt *Runtime) Shared(network, addr string) (uuid.UUID, error) {
	ch, err := workeradapter.DialShared(context.Background(), network, addr, rt.wire, channel.Extra{})
	if err != nil {
		return uuid.Nil, err
	}
	l, err := rt.addLink(ch, true)
	if err != nil {
		return uuid.Nil, err
	}
	return l.peerStage, nil
}

// ListenShared starts accepting shared-worker peer links, the
// multiple-tabs-joining-one-process counterpart to Dedicated.
func (rt *Runtime) ListenShared(network, addr string) (*workeradapter.Listener, error) {
	ln, err := workeradapter.ListenShared(network, addr, rt.wire, channel.Extra{})
	if err != nil {
		return nil, err
	}
	go rt.acceptShared(ln)
	return ln, nil
}

func (rt *Runtime) acceptShared(ln *workeradapter.Listener) {
	for {
		ch, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := rt.addLink(ch, false); err != nil {
			rlog.Warnf("stage: shared peer link failed: %v", err)
		}
	}
}
