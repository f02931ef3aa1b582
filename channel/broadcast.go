package channel

import (
	"sync"

	"github.com/meh/shumei/wire"
)

// bus is the process-local named broadcast registry backing
// Broadcast(name). A true cross-process broadcast bus is a transport
// collaborator's concern; workeradapter's shared port is where that
// boundary gets crossed in this repo.
type bus struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	mu   sync.Mutex
	subs map[uint64]chan wire.Envelope
	next uint64
}

var defaultBus = &bus{topics: make(map[string]*topic)}

func (b *bus) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{subs: make(map[uint64]chan wire.Envelope)}
		b.topics[name] = t
	}
	return t
}

func (t *topic) subscribe() (id uint64, ch chan wire.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id = t.next
	t.next++
	ch = make(chan wire.Envelope, 64)
	t.subs[id] = ch
	return id, ch
}

func (t *topic) unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(ch)
	}
}

// publish delivers env to every subscriber except except, matching
// BroadcastChannel semantics where a publisher does not hear its own
// message.
func (t *topic) publish(except uint64, env wire.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.subs {
		if id == except {
			continue
		}
		select {
		case ch <- env:
		default:
			// slow subscriber: drop rather than block the publisher;
			// there is no back-pressure negotiation at this layer.
		}
	}
}

type busPort struct {
	t    *topic
	id   uint64
	ch   chan wire.Envelope
	errs chan error
}

func (p *busPort) Send(env wire.Envelope) error {
	p.t.publish(p.id, env)
	return nil
}

func (p *busPort) Recv() (<-chan wire.Envelope, <-chan error) {
	return p.ch, p.errs
}

func (p *busPort) Close() error {
	p.t.unsubscribe(p.id)
	return nil
}

// Broadcast creates a Channel backed by the named broadcast bus.
// Every Broadcast(name) call in this
// process shares the same topic; sends reach every other subscriber,
// never the sender itself.
func Broadcast(name string, w *wire.Wire, extra Extra) *Channel {
	t := defaultBus.topicFor(name)
	id, ch := t.subscribe()
	port := &busPort{t: t, id: id, ch: ch, errs: make(chan error)}
	c := New(port, w, extra)
	c.Kind = "broadcast"
	return c
}
