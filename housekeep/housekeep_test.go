package housekeep_test

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/meh/shumei/housekeep"
)

var _ = Describe("Housekeeper", func() {
	It("invokes a registered function and honors its returned interval", func() {
		var calls int64
		housekeep.Reg("ticker"+housekeep.NameSuffix, func() time.Duration {
			atomic.AddInt64(&calls, 1)
			return 10 * time.Millisecond
		}, 10*time.Millisecond)
		defer housekeep.Unreg("ticker" + housekeep.NameSuffix)

		Eventually(func() int64 {
			return atomic.LoadInt64(&calls)
		}, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 2))
	})

	It("removes a job that returns UnregInterval", func() {
		var calls int64
		housekeep.Reg("oneshot"+housekeep.NameSuffix, func() time.Duration {
			atomic.AddInt64(&calls, 1)
			return housekeep.UnregInterval
		}, 5*time.Millisecond)

		Eventually(func() int64 {
			return atomic.LoadInt64(&calls)
		}, time.Second, 5*time.Millisecond).Should(Equal(int64(1)))
		Consistently(func() int64 {
			return atomic.LoadInt64(&calls)
		}, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(int64(1)))
	})

	It("unregisters conditionally via UnregIf", func() {
		ran := make(chan struct{}, 8)
		housekeep.Reg("cond"+housekeep.NameSuffix, func() time.Duration {
			ran <- struct{}{}
			return time.Hour
		}, time.Hour)

		Expect(housekeep.UnregIf("cond"+housekeep.NameSuffix, func() bool { return false })).To(BeFalse())
		Expect(housekeep.UnregIf("cond"+housekeep.NameSuffix, func() bool { return true })).To(BeTrue())
		Consistently(ran, 50*time.Millisecond).ShouldNot(Receive())
	})

	It("keeps running after a job panics", func() {
		var after int64
		housekeep.Reg("panicky"+housekeep.NameSuffix, func() time.Duration {
			panic("boom")
		}, 5*time.Millisecond)
		housekeep.Reg("survivor"+housekeep.NameSuffix, func() time.Duration {
			atomic.AddInt64(&after, 1)
			return 10 * time.Millisecond
		}, 20*time.Millisecond)
		defer housekeep.Unreg("survivor" + housekeep.NameSuffix)

		Eventually(func() int64 {
			return atomic.LoadInt64(&after)
		}, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 1))
	})
})
