package stage_test

import (
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/meh/shumei/stage"
)

// A parent stage resolves a child-registered actor by name and a send
// to the resulting handle is delivered.
var _ = Describe("Stage resolution", func() {
	It("resolves a child-registered actor by name and delivers a send", func() {
		parent := stage.New()
		results := make(chan int, 1)
		registered := make(chan struct{})

		childID, err := parent.Dedicated(func(child *stage.Runtime) {
			_, regErr := child.Register("add", func(self stage.Address, step int, msg any) (stage.Filter, bool) {
				if step == 0 {
					return nil, false
				}
				req := msg.(map[string]any)
				a := req["a"].(int)
				b := req["b"].(int)
				results <- a + b
				return nil, true
			})
			Expect(regErr).NotTo(HaveOccurred())
			close(registered)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(childID).NotTo(Equal(uuid.Nil))

		// An unanswered WHOIS blocks until a reply arrives, so wait for
		// the child to finish registering before asking.
		Eventually(registered, time.Second).Should(BeClosed())

		actor, err := parent.ActorByName("add")
		Expect(err).NotTo(HaveOccurred())

		// A Dedicated link's SendMsg crosses an in-process Pair (no JSON
		// round-trip), so these ints keep their concrete Go type rather
		// than widening to float64.
		Expect(actor.Send(map[string]any{"a": 2, "b": 3})).To(Succeed())
		Eventually(results, time.Second).Should(Receive(Equal(5)))
	})
})

// A SEND addressed to a stage with no direct link crosses an
// intermediate stage by broadcast, reaching the target exactly once
// rather than bouncing back toward its sender.
var _ = Describe("Multi-hop broadcast forwarding", func() {
	It("forwards a SEND across an intermediate stage without bouncing it back", func() {
		a := stage.New()
		received := make(chan int, 1)
		sinkAddr := make(chan stage.Address, 1)

		_, err := a.Dedicated(func(b *stage.Runtime) {
			_, err := b.Dedicated(func(c *stage.Runtime) {
				addr, regErr := c.Register("sink", func(self stage.Address, step int, msg any) (stage.Filter, bool) {
					if step == 0 {
						return nil, false
					}
					n := msg.(map[string]any)["n"].(int)
					received <- n
					return nil, true
				})
				Expect(regErr).NotTo(HaveOccurred())
				sinkAddr <- addr
			})
			Expect(err).NotTo(HaveOccurred())
		})
		Expect(err).NotTo(HaveOccurred())

		var addr stage.Address
		Eventually(sinkAddr, time.Second).Should(Receive(&addr))

		Expect(a.Send(addr, map[string]any{"n": 7})).To(Succeed())
		Eventually(received, time.Second).Should(Receive(Equal(7)))
		Consistently(received, 200*time.Millisecond).ShouldNot(Receive())
	})
})

// Repeated Ready calls never block or panic, whether or not a parent
// link exists.
var _ = Describe("Stage readiness", func() {
	It("is idempotent across repeated calls once a parent link exists", func() {
		parent := stage.New()
		done := make(chan struct{})

		_, err := parent.Dedicated(func(child *stage.Runtime) {
			child.Ready()
			child.Ready()
			child.Ready()
			close(done)
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("is a safe no-op with no parent link", func() {
		rt := stage.New()
		Expect(func() {
			rt.Ready()
			rt.Ready()
		}).NotTo(Panic())
	})
})
