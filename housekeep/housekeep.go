// Package housekeep provides a registrar for named functions invoked
// at specified intervals. A registered function returns the next
// interval to wait before its following call; returning UnregInterval
// unregisters it.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package housekeep

import (
	"container/heap"
	"sync"
	"time"

	"github.com/meh/shumei/rlog"
)

// NameSuffix disambiguates a housekeeping job name from whatever
// domain name it's derived from (an actor id, a stage id, ...).
const NameSuffix = ".hk"

// UnregInterval is the sentinel a registered function returns to
// unregister itself instead of being rescheduled.
const UnregInterval = time.Duration(-1)

// Func is a housekeeping job: called at its scheduled time, it
// returns the duration to wait before its next call.
type Func func() time.Duration

type job struct {
	name  string
	f     Func
	due   time.Time
	index int
}

type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *jobHeap) Push(x any)         { j := x.(*job); j.index = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Housekeeper runs registered jobs on their own schedule.
type Housekeeper struct {
	mu      sync.Mutex
	byName  map[string]*job
	heap    jobHeap
	wake    chan struct{}
	started chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// New constructs an idle Housekeeper; call Run to start its loop.
func New() *Housekeeper {
	return &Housekeeper{
		byName:  make(map[string]*job),
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Stop ends a running Housekeeper's loop.
func (hk *Housekeeper) Stop() {
	select {
	case <-hk.stop:
	default:
		close(hk.stop)
	}
}

// DefaultHK is the process-wide Housekeeper singleton, started by
// stage.New via Run in a background goroutine.
var DefaultHK = New()

// Reg schedules f to run once after interval, then reschedules
// according to its own return value. Re-registering name replaces
// the previous job.
func (hk *Housekeeper) Reg(name string, f Func, interval time.Duration) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if old, ok := hk.byName[name]; ok {
		heap.Remove(&hk.heap, old.index)
	}
	j := &job{name: name, f: f, due: timeNow().Add(interval)}
	hk.byName[name] = j
	heap.Push(&hk.heap, j)
	hk.poke()
}

// Unreg removes name if present; a no-op otherwise.
func (hk *Housekeeper) Unreg(name string) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	hk.remove(name)
}

// UnregIf removes name if cond() is true, reporting whether it did.
func (hk *Housekeeper) UnregIf(name string, cond func() bool) bool {
	if !cond() {
		return false
	}
	hk.Unreg(name)
	return true
}

func (hk *Housekeeper) remove(name string) {
	j, ok := hk.byName[name]
	if !ok {
		return
	}
	delete(hk.byName, name)
	heap.Remove(&hk.heap, j.index)
}

func (hk *Housekeeper) poke() {
	select {
	case hk.wake <- struct{}{}:
	default:
	}
}

// Run drives the scheduling loop until Stop is called; intended to
// run in its own goroutine for the lifetime of the process (or test).
func (hk *Housekeeper) Run() {
	hk.once.Do(func() { close(hk.started) })
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		hk.mu.Lock()
		var wait time.Duration
		if len(hk.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(hk.heap[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		hk.mu.Unlock()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-hk.stop:
			return
		case <-timer.C:
			hk.runDue()
		case <-hk.wake:
		}
	}
}

func (hk *Housekeeper) runDue() {
	now := timeNow()
	for {
		hk.mu.Lock()
		if len(hk.heap) == 0 || hk.heap[0].due.After(now) {
			hk.mu.Unlock()
			return
		}
		j := heap.Pop(&hk.heap).(*job)
		delete(hk.byName, j.name)
		hk.mu.Unlock()

		next := hk.callSafe(j)
		if next == UnregInterval {
			continue
		}
		hk.mu.Lock()
		j.due = now.Add(next)
		hk.byName[j.name] = j
		heap.Push(&hk.heap, j)
		hk.mu.Unlock()
	}
}

func (hk *Housekeeper) callSafe(j *job) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			rlog.Warnf("housekeep: job %q panicked: %v", j.name, r)
			next = UnregInterval
		}
	}()
	return j.f()
}

// WaitStarted blocks until Run has begun, for callers (tests) racing
// a background Run goroutine.
func (hk *Housekeeper) WaitStarted() { <-hk.started }

// timeNow is indirected so tests can swap in a synthetic clock.
var timeNow = time.Now

// Reg/Unreg/UnregIf against the package singleton.
func Reg(name string, f Func, interval time.Duration) { DefaultHK.Reg(name, f, interval) }
func Unreg(name string)                               { DefaultHK.Unreg(name) }
func UnregIf(name string, cond func() bool) bool      { return DefaultHK.UnregIf(name, cond) }

// Run starts the package singleton's loop; callers run it in its own
// goroutine.
func Run() { DefaultHK.Run() }

// WaitStarted blocks until Run has begun.
func WaitStarted() { DefaultHK.WaitStarted() }

// TestInit resets DefaultHK to a fresh instance, for test suites that
// need an un-started Housekeeper.
func TestInit() { DefaultHK = New() }
