// Package mailbox wraps a channel.Channel with an out-of-order buffer
// and selective receive.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package mailbox

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/meh/shumei/channel"
)

// ErrClosed mirrors channel.ErrClosed: a Match/Recv failed because the
// underlying channel closed while waiting.
var ErrClosed = channel.ErrClosed

// Filter is a selective-receive predicate. A nil Filter matches
// anything (used internally by Recv).
type Filter func(v any) bool

type waiter struct {
	pred Filter
	out  chan result
}

type result struct {
	v   any
	err error
}

// Mailbox is a channel with buffered selective receive.
type Mailbox struct {
	ch *channel.Channel

	mu          sync.Mutex
	buf         []any
	waiters     []*waiter
	closed      bool
	closeErr    error
	pumpStarted bool
}

// Wrap builds a Mailbox over ch.
func Wrap(ch *channel.Channel) *Mailbox {
	return &Mailbox{ch: ch}
}

func (m *Mailbox) ensurePump() {
	if m.pumpStarted {
		return
	}
	m.pumpStarted = true
	go m.pump()
}

func (m *Mailbox) pump() {
	ctx := context.Background()
	for {
		v, err := m.ch.Recv(ctx)
		if err != nil {
			m.closeAll(err)
			return
		}
		m.deliver(v)
	}
}

// deliver hands v to the first waiter (FIFO registration order) whose
// predicate matches it; otherwise it joins the buffer.
func (m *Mailbox) deliver(v any) {
	m.mu.Lock()
	for i, w := range m.waiters {
		if w.pred == nil || w.pred(v) {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			m.mu.Unlock()
			w.out <- result{v: v}
			close(w.out)
			return
		}
	}
	m.buf = append(m.buf, v)
	m.mu.Unlock()
}

func (m *Mailbox) closeAll(err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.closeErr = err
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()
	for _, w := range waiters {
		w.out <- result{err: errors.Wrap(ErrClosed, "mailbox: channel closed while waiting")}
		close(w.out)
	}
}

// Match is the selective-receive primitive: it scans the buffer in
// insertion order for the first message satisfying pred, removing and
// returning it; otherwise it consumes from the channel, stashing each
// non-match, until a match arrives or the channel closes.
func (m *Mailbox) Match(ctx context.Context, pred Filter) (any, error) {
	m.mu.Lock()
	for i, v := range m.buf {
		if pred == nil || pred(v) {
			m.buf = append(m.buf[:i], m.buf[i+1:]...)
			m.mu.Unlock()
			return v, nil
		}
	}
	if m.closed {
		err := m.closeErr
		m.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return nil, errors.Wrap(err, "mailbox: channel closed")
	}

	w := &waiter{pred: pred, out: make(chan result, 1)}
	m.waiters = append(m.waiters, w)
	m.ensurePump()
	m.mu.Unlock()

	select {
	case r := <-w.out:
		return r.v, r.err
	case <-ctx.Done():
		m.removeWaiter(w)
		return nil, ctx.Err()
	}
}

func (m *Mailbox) removeWaiter(target *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.waiters {
		if w == target {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// Recv returns the oldest buffered-or-incoming message, matching
// anything.
func (m *Mailbox) Recv(ctx context.Context) (any, error) {
	return m.Match(ctx, nil)
}

// Send delegates to the wrapped channel.
func (m *Mailbox) Send(v any) error { return m.ch.Send(v) }

// Range iterates messages (oldest buffered first, then fresh arrivals)
// until the channel closes or fn returns false.
func (m *Mailbox) Range(ctx context.Context, fn func(v any) bool) {
	for {
		v, err := m.Recv(ctx)
		if err != nil {
			return
		}
		if !fn(v) {
			return
		}
	}
}

// Close closes the wrapped channel.
func (m *Mailbox) Close() error { return m.ch.Close() }
