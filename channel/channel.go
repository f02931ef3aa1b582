// Package channel implements a typed, ordered, codec-aware duplex of
// values, layered over anything satisfying Port.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package channel

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/meh/shumei/metrics"
	"github.com/meh/shumei/rlog"
	"github.com/meh/shumei/wire"
)

// ErrClosed is returned by Recv/Send once the channel (or its peer)
// has closed.
var ErrClosed = errors.New("channel: closed")

// Port is something bidirectional that moves wire Envelopes. A Port
// implementation that actually
// crosses a process boundary is responsible for framing an Envelope
// to bytes on its own (see wire.Marshal/Unmarshal and
// workeradapter.netPort); an in-process Port (Pair) can move the
// Envelope value directly.
type Port interface {
	Send(env wire.Envelope) error
	// Recv returns a stream of incoming envelopes and a parallel error
	// stream; the envelope channel closes when the port closes cleanly.
	Recv() (<-chan wire.Envelope, <-chan error)
	Close() error
}

// Extra holds advanced, optional per-channel knobs. Compression is
// applied by Port implementations that frame to bytes; it has no
// effect on a pure in-process Pair.
type Extra struct {
	Compressed    bool
	CompressAbove int // defaults to config.Default().Transport.CompressAbove when zero
}

// Channel is an ordered duplex of decoded values over a Port.
type Channel struct {
	port  Port
	wire  *wire.Wire
	extra Extra

	// Kind labels this channel's metrics.MessagesSent/Received series
	// ("pair", "broadcast", "queue", "shared", ...); constructors set it,
	// callers may override before first use.
	Kind string

	mu     sync.Mutex
	queue  []any
	cond   *sync.Cond
	closed bool
	cerr   error

	// direct-queue channels bypass Port/wire entirely (no
	// serialization); see FromQueue.
	raw           chan any
	isDirectQueue bool
}

func (c *Channel) kindLabel() string {
	if c.Kind == "" {
		return "channel"
	}
	return c.Kind
}

// New wraps port in a Channel that encodes/decodes every value
// through w.
func New(port Port, w *wire.Wire, extra Extra) *Channel {
	ch := &Channel{port: port, wire: w, extra: extra}
	ch.cond = sync.NewCond(&ch.mu)
	go ch.pump()
	return ch
}

func (c *Channel) pump() {
	envs, errs := c.port.Recv()
	for {
		select {
		case env, ok := <-envs:
			if !ok {
				c.closeWith(ErrClosed)
				return
			}
			v, err := c.wire.Decode(env)
			if err != nil {
				rlog.Warnf("channel: decode error: %v", err)
				continue
			}
			metrics.MessagesReceived.WithLabelValues(c.kindLabel()).Inc()
			c.push(v)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			c.closeWith(err)
			return
		}
	}
}

func (c *Channel) push(v any) {
	c.mu.Lock()
	c.queue = append(c.queue, v)
	c.cond.Signal()
	c.mu.Unlock()
}

func (c *Channel) closeWith(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cerr = err
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Send encodes v and hands the result to the underlying port in one
// operation.
func (c *Channel) Send(v any) error {
	if c.isDirectQueue {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}
		c.raw <- v
		metrics.MessagesSent.WithLabelValues(c.kindLabel()).Inc()
		return nil
	}

	env, err := c.wire.Encode(v)
	if err != nil {
		return errors.Wrap(err, "channel: encode")
	}
	if err := c.port.Send(env); err != nil {
		return errors.Wrap(err, "channel: port send")
	}
	metrics.MessagesSent.WithLabelValues(c.kindLabel()).Inc()
	return nil
}

// Recv blocks for the next decoded value, FIFO, or returns the close
// reason (ErrClosed, or the error the port reported) once the channel
// is drained and closed.
func (c *Channel) Recv(ctx context.Context) (any, error) {
	if c.isDirectQueue {
		select {
		case v, ok := <-c.raw:
			if !ok {
				return nil, ErrClosed
			}
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	finished := make(chan struct{})
	if d := ctx.Done(); d != nil {
		go func() {
			select {
			case <-d:
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-finished:
			}
		}()
	}
	defer close(finished)

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.cond.Wait()
	}
	if len(c.queue) > 0 {
		v := c.queue[0]
		c.queue = c.queue[1:]
		return v, nil
	}
	if c.cerr != nil {
		return nil, c.cerr
	}
	return nil, ErrClosed
}

// Range iterates decoded values until the channel closes or fn
// returns false.
func (c *Channel) Range(ctx context.Context, fn func(v any) bool) {
	for {
		v, err := c.Recv(ctx)
		if err != nil {
			return
		}
		if !fn(v) {
			return
		}
	}
}

// Close closes the underlying port and signals end-of-stream to
// consumers. Already-queued values remain available to Recv until
// drained.
func (c *Channel) Close() error {
	if c.isDirectQueue {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.raw)
		}
		c.mu.Unlock()
		return nil
	}
	c.closeWith(ErrClosed)
	return c.port.Close()
}
