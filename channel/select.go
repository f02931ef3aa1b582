package channel

import (
	"context"
	"sync"

	"github.com/meh/shumei/rlog"
)

// SelectResult pairs a fan-in value with the input Channel it arrived
// on.
type SelectResult struct {
	Channel *Channel
	Value   any
}

// Fanin is a fair-ish fan-in of N Channels into one receiver of
// SelectResult. Ordering is per-input only.
type Fanin struct {
	inputs []*Channel
	out    chan SelectResult
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Select starts a Fanin over chans. Pending receives on every input
// compete for the output; closing the Fanin closes every input.
func Select(chans ...*Channel) *Fanin {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fanin{
		inputs: append([]*Channel(nil), chans...),
		out:    make(chan SelectResult, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(len(chans))
	for _, ch := range chans {
		ch := ch
		go func() {
			defer wg.Done()
			for {
				v, err := ch.Recv(ctx)
				if err != nil {
					return
				}
				select {
				case f.out <- SelectResult{Channel: ch, Value: v}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(f.out)
		close(f.done)
	}()

	return f
}

// Recv returns the next value to arrive on any input.
func (f *Fanin) Recv(ctx context.Context) (SelectResult, error) {
	select {
	case r, ok := <-f.out:
		if !ok {
			return SelectResult{}, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		return SelectResult{}, ctx.Err()
	}
}

// Range iterates fan-in results until every input closes, the caller
// stops (fn returns false), or ctx is done.
func (f *Fanin) Range(ctx context.Context, fn func(SelectResult) bool) {
	for {
		r, err := f.Recv(ctx)
		if err != nil {
			return
		}
		if !fn(r) {
			return
		}
	}
}

// Close closes every fanned-in input's receive path and releases the
// composite.
func (f *Fanin) Close() {
	f.once.Do(func() {
		for _, ch := range f.inputs {
			_ = ch.Close()
		}
		f.cancel()
		go func() {
			for range f.out {
				// drain so producer goroutines blocked on f.out<- can exit
			}
		}()
		rlog.Infof("channel: fanin closed")
	})
}
