package stage

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/idgen"
	"github.com/meh/shumei/metrics"
	"github.com/meh/shumei/rlog"
)

// link is one stage-to-stage connection: a channel plus the identity
// handshake's result.
type link struct {
	peerStage uuid.UUID
	ch        *channel.Channel
	isParent  bool
}

// addLink links two stages: exchange STAGE{id} packets, then hand the
// channel to a per-link router goroutine.
func (rt *Runtime) addLink(ch *channel.Channel, isParent bool) (*link, error) {
	if err := ch.Send(StageIdent{ID: rt.id}); err != nil {
		return nil, err
	}
	v, err := ch.Recv(context.Background())
	if err != nil {
		return nil, err
	}
	ident, ok := v.(StageIdent)
	if !ok {
		return nil, protocolViolation("first packet on link was not STAGE")
	}

	l := &link{peerStage: ident.ID, ch: ch, isParent: isParent}

	rt.mu.Lock()
	rt.links[ident.ID] = l
	if isParent {
		rt.parentLink = l
	}
	rt.mu.Unlock()

	go rt.routeLink(l)
	return l, nil
}

// routeLink is the per-link router: it consumes the link's channel
// and dispatches WHOIS_ACTOR, SEND, or falls through to the stage's
// own mailbox for everything else (including ACTOR replies, which
// actor resolution consumes via Match).
func (rt *Runtime) routeLink(l *link) {
	ctx := context.Background()
	for {
		v, err := l.ch.Recv(ctx)
		if err != nil {
			rt.mu.Lock()
			delete(rt.links, l.peerStage)
			if rt.parentLink == l {
				rt.parentLink = nil
			}
			rt.mu.Unlock()
			return
		}
		switch m := v.(type) {
		case WhoisActor:
			rt.handleWhois(l, m)
		case SendMsg:
			rt.handleSend(l, m)
		default:
			if err := rt.mb.Send(v); err != nil {
				rlog.Warnf("stage: internal mailbox send failed: %v", err)
			}
		}
	}
}

func (rt *Runtime) handleWhois(l *link, m WhoisActor) {
	rt.mu.RLock()
	if aliased, ok := rt.names[m.Whois]; ok {
		rt.mu.RUnlock()
		rt.reply(l, m.ReqID, Address{Actor: aliased, Stage: rt.id}, true)
		return
	}
	if id, err := uuid.Parse(m.Whois); err == nil {
		if actor, ok := rt.actors[id]; ok {
			addr := actor.Address()
			rt.mu.RUnlock()
			rt.reply(l, m.ReqID, addr, true)
			return
		}
	}
	rt.mu.RUnlock()
	// No reply. TODO: forward the whois to neighbor links with a hop
	// bound, so multi-hop names resolve too.
}

func (rt *Runtime) reply(l *link, reqID string, addr Address, found bool) {
	if err := l.ch.Send(ActorReply{ReqID: reqID, Actor: addr, Found: found}); err != nil {
		rlog.Warnf("stage: actor reply send failed: %v", err)
	}
}

func (rt *Runtime) handleSend(arrivedOn *link, m SendMsg) {
	if m.To.Stage == rt.id {
		rt.mu.RLock()
		a, ok := rt.actors[m.To.Actor]
		rt.mu.RUnlock()
		if !ok {
			rlog.Warnf("stage: %v", unknownActor(m.To))
			return
		}
		if err := a.Send(m.Message); err != nil {
			rlog.Warnf("stage: delivery to %s failed: %v", m.To, err)
		}
		return
	}

	rt.mu.RLock()
	target, known := rt.links[m.To.Stage]
	rt.mu.RUnlock()
	if known {
		if err := target.ch.Send(m); err != nil {
			rlog.Warnf("stage: forward to stage %s failed: %v", m.To.Stage, err)
		}
		return
	}

	rt.broadcastSend(arrivedOn, m)
}

// broadcastSend fans SendMsg out to every link except the one it
// arrived on, consulting a bounded cuckoofilter seen-set first so a
// routing cycle cannot re-amplify the same message.
func (rt *Runtime) broadcastSend(arrivedOn *link, m SendMsg) {
	key := seenKey(m.Sender, m.Seq)
	if rt.seen.Lookup(key) {
		metrics.BroadcastSeenHits.WithLabelValues(rt.id.String()).Inc()
		return
	}
	rt.seen.InsertUnique(key)

	rt.mu.RLock()
	targets := make([]*link, 0, len(rt.links))
	for _, l := range rt.links {
		if l != arrivedOn {
			targets = append(targets, l)
		}
	}
	rt.mu.RUnlock()

	var g errgroup.Group
	for _, l := range targets {
		l := l
		g.Go(func() error {
			if err := l.ch.Send(m); err != nil {
				rlog.Warnf("stage: broadcast to stage %s failed: %v", l.peerStage, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// seenKey turns a SendMsg's (sender, seq) pair into the cuckoofilter
// key.
func seenKey(sender string, seq uint64) []byte {
	h := idgen.HashPair(idgen.ID(sender), seq)
	var b [8]byte
	for i := range b {
		b[i] = byte(h >> (8 * i))
	}
	return b[:]
}
