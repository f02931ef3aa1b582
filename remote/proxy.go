package remote

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/rlog"
)

// Proxy is the client-side handle to a remote value: a closed
// operation interface rather than method-missing magic, so every
// forwarded operation is explicit in the caller's code.
type Proxy interface {
	Get(key string) (any, error)
	Set(key string, val any) error
	Delete(key string) error
	Apply(args ...any) (any, error)
	Construct(args ...any) (any, error)
	Close() error
}

type remoteProxy struct {
	ch  *channel.Channel
	id  string
	seq uint64

	mu      sync.Mutex
	pending map[uint64]chan response
	closed  bool
	cerr    error
}

// NewProxy builds the client side of the remote-value protocol over
// ch, whose peer is expected to be running a Handler (directly via
// Spawn, or indirectly via the marked-value wire codec).
func NewProxy(ch *channel.Channel) Proxy {
	p := &remoteProxy{ch: ch, id: newID(), pending: make(map[uint64]chan response)}
	atomic.AddInt64(&activeProxies, 1)
	go p.pump()
	return p
}

// activeProxies counts live proxies process-wide, for housekeep's
// periodic stale-proxy log (observation only, never an automatic
// reaper).
var activeProxies int64

// ActiveProxies reports how many Proxy values have been created via
// NewProxy and not yet closed (or failed).
func ActiveProxies() int64 { return atomic.LoadInt64(&activeProxies) }

func (p *remoteProxy) pump() {
	ctx := context.Background()
	for {
		v, err := p.ch.Recv(ctx)
		if err != nil {
			p.failAll(err)
			return
		}
		resp, ok := v.(response)
		if !ok {
			rlog.Warnf("remote: proxy received non-response value %T, ignoring", v)
			continue
		}
		p.mu.Lock()
		out, ok := p.pending[resp.Seq]
		if ok {
			delete(p.pending, resp.Seq)
		}
		p.mu.Unlock()
		if ok {
			out <- resp
			close(out)
		}
	}
}

func (p *remoteProxy) failAll(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cerr = err
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	atomic.AddInt64(&activeProxies, -1)
	for _, out := range pending {
		out <- response{ErrStr: err.Error()}
		close(out)
	}
}

func (p *remoteProxy) call(op Op, key string, val any, args []any) (any, error) {
	seq := atomic.AddUint64(&p.seq, 1)
	out := make(chan response, 1)

	p.mu.Lock()
	if p.closed {
		err := p.cerr
		p.mu.Unlock()
		if err == nil {
			err = channel.ErrClosed
		}
		return nil, errors.Wrap(err, "remote: proxy closed")
	}
	p.pending[seq] = out
	p.mu.Unlock()

	req := request{ID: p.id, Seq: seq, Op: op, Key: key, Val: val, Args: args}
	if err := p.ch.Send(req); err != nil {
		p.mu.Lock()
		delete(p.pending, seq)
		p.mu.Unlock()
		return nil, errors.Wrap(err, "remote: proxy send")
	}

	resp := <-out
	if resp.ErrStr != "" {
		if t, ok := resp.Result.(*Thrown); ok {
			return nil, t
		}
		return nil, errors.New(resp.ErrStr)
	}
	return resp.Result, nil
}

func (p *remoteProxy) Get(key string) (any, error) { return p.call(OpGet, key, nil, nil) }

func (p *remoteProxy) Set(key string, val any) error {
	_, err := p.call(OpSet, key, val, nil)
	return err
}

func (p *remoteProxy) Delete(key string) error {
	_, err := p.call(OpDelete, key, nil, nil)
	return err
}

func (p *remoteProxy) Apply(args ...any) (any, error) { return p.call(OpApply, "", nil, args) }

func (p *remoteProxy) Construct(args ...any) (any, error) {
	return p.call(OpConstruct, "", nil, args)
}

func (p *remoteProxy) Close() error { return p.ch.Close() }
