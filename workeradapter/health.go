package workeradapter

import (
	"sync/atomic"

	"github.com/valyala/fasthttp"
)

// Health is a liveness probe for a shared-worker process, exposed over
// plain HTTP so an orchestrator (systemd, a container runtime, a
// supervising process) can poll it the way it would poll any other
// daemon — SharedWorker instances have no such out-of-band probe in a
// browser, but an OS process standing in for one needs it.
type Health struct {
	ready int32
}

// NewHealth returns a Health that reports not-ready until MarkReady is
// called.
func NewHealth() *Health { return &Health{} }

// MarkReady flips the probe to healthy. Call it once ListenShared has
// started accepting connections.
func (h *Health) MarkReady() { atomic.StoreInt32(&h.ready, 1) }

// MarkNotReady flips the probe back to unhealthy, e.g. during shutdown.
func (h *Health) MarkNotReady() { atomic.StoreInt32(&h.ready, 0) }

// Handler exposes the probe's fasthttp.RequestHandler directly, for
// callers mounting it into a larger router instead of ServeHealth's
// standalone listener.
func (h *Health) Handler() fasthttp.RequestHandler { return h.handler }

func (h *Health) handler(ctx *fasthttp.RequestCtx) {
	if atomic.LoadInt32(&h.ready) == 1 {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	ctx.SetBodyString("not ready")
}

// ServeHealth starts a liveness endpoint on addr and blocks until it
// fails or the listener is closed elsewhere. Run it in its own
// goroutine alongside ListenShared.
func (h *Health) ServeHealth(addr string) error {
	return fasthttp.ListenAndServe(addr, h.handler)
}
