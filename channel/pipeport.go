package channel

import (
	"sync"
	"time"

	"github.com/meh/shumei/wire"
)

// pipePort is the in-process Port used by Pair(): two goroutines'
// worth of envelopes moving over buffered Go channels, the closest
// in-process analogue to a freshly instantiated MessageChannel port
// pair. Because both ends live in the same process, envelopes (and
// anything they reference, including further Channels) move by
// reference — a real "transfer", not a copy. The close signal is
// shared between the halves: closing either end tears the duplex down
// and unblocks the peer's receivers.
type pipePort struct {
	out chan<- wire.Envelope
	in  <-chan wire.Envelope

	closeOnce *sync.Once
	closeSig  chan struct{}
}

// newPipePair creates two linked in-process Ports.
func newPipePair() (a, b *pipePort) {
	ab := make(chan wire.Envelope, 64)
	ba := make(chan wire.Envelope, 64)
	sig := make(chan struct{})
	once := &sync.Once{}
	a = &pipePort{out: ab, in: ba, closeOnce: once, closeSig: sig}
	b = &pipePort{out: ba, in: ab, closeOnce: once, closeSig: sig}
	return a, b
}

func (p *pipePort) Send(env wire.Envelope) error {
	select {
	case <-p.closeSig:
		return ErrClosed
	default:
	}
	select {
	case p.out <- env:
		return nil
	case <-p.closeSig:
		return ErrClosed
	}
}

func (p *pipePort) Recv() (<-chan wire.Envelope, <-chan error) {
	errs := make(chan error)
	out := make(chan wire.Envelope)
	go func() {
		defer close(out)
		for {
			select {
			case env := <-p.in:
				select {
				case out <- env:
				case <-p.closeSig:
					return
				}
			case <-p.closeSig:
				// Drain what the peer already sent before giving up, so
				// a send-then-close pair still delivers.
				for {
					select {
					case env := <-p.in:
						select {
						case out <- env:
						case <-time.After(10 * time.Millisecond):
							return
						}
					default:
						return
					}
				}
			}
		}
	}()
	return out, errs
}

func (p *pipePort) Close() error {
	p.closeOnce.Do(func() { close(p.closeSig) })
	return nil
}

// Pair creates two linked Channels sharing a fresh in-process port
// pair. Either Channel may itself be sent across a third channel,
// moving it (see portCodec).
func Pair(w *wire.Wire, extra Extra) (a, b *Channel) {
	pa, pb := newPipePair()
	a, b = New(pa, w, extra), New(pb, w, extra)
	a.Kind, b.Kind = "pair", "pair"
	return a, b
}
