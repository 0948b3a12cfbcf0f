package clockfake

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-blog-client/internal/clock"
)

var _ clock.Clock = (*FakeClock)(nil)

// FakeClock only moves when Advance or Set is called. Due timers run synchronously on the
// goroutine that moved the clock, in deadline order.
type FakeClock struct {
	lock   sync.Mutex
	now    time.Time
	timers []*fakeTimer

	// StopFails makes Timer.Stop a no-op reporting false, as when the timer raced its own cancellation.
	StopFails bool
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that becomes due.
func (c *FakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock to now, firing every timer whose deadline is not after it.
// Timers armed by fired callbacks are honoured when they are also due.
func (c *FakeClock) Set(now time.Time) {
	c.lock.Lock()
	c.now = now
	c.lock.Unlock()

	for {
		t := c.nextDue()
		if t == nil {
			return
		}
		t.f()
	}
}

// Suspend moves the clock without firing anything, the way timers stay frozen while a host
// application is suspended.
func (c *FakeClock) Suspend(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

// Pending returns the number of timers that are armed and not yet fired or stopped.
func (c *FakeClock) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	count := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

// Deadlines returns the deadlines of the pending timers in ascending order.
func (c *FakeClock) Deadlines() []time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	deadlines := make([]time.Time, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			deadlines = append(deadlines, t.deadline)
		}
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].Before(deadlines[j]) })
	return deadlines
}

// FireAll runs every pending timer regardless of its deadline, as a late timer would.
func (c *FakeClock) FireAll() {
	c.lock.Lock()
	pending := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			pending = append(pending, t)
		}
	}
	c.lock.Unlock()

	for _, t := range pending {
		t.f()
	}
}

func (c *FakeClock) nextDue() *fakeTimer {
	c.lock.Lock()
	defer c.lock.Unlock()

	var next *fakeTimer
	for _, t := range c.timers {
		if t.stopped || t.fired || t.deadline.After(c.now) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next != nil {
		next.fired = true
	}
	return next
}

func (t *fakeTimer) Stop() bool {
	t.clock.lock.Lock()
	defer t.clock.lock.Unlock()

	if t.stopped || t.fired || t.clock.StopFails {
		return false
	}
	t.stopped = true
	return true
}
