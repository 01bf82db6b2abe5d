// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Time only moves when Advance
// is called. Callbacks registered with AfterFunc run on the goroutine
// calling Advance, so they must not call Advance themselves.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*entry
	changed *sync.Cond
	nextSeq uint64
}

type entry struct {
	due  time.Time
	seq  uint64
	fn   func()
	ch   chan time.Time
	done bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives when the clock passes now+d.
// A non-positive d delivers immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.addLocked(&entry{due: c.now.Add(d), ch: ch})
	return ch
}

// AfterFunc registers f to run when the clock passes now+d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{}
	}
	c.mu.Lock()
	e := &entry{due: c.now.Add(d), fn: f}
	c.addLocked(e)
	c.mu.Unlock()
	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e.done {
			return false
		}
		e.done = true
		c.changed.Broadcast()
		return true
	}}
}

func (c *FakeClock) addLocked(e *entry) {
	c.nextSeq++
	e.seq = c.nextSeq
	c.pending = append(c.pending, e)
	c.changed.Broadcast()
}

// Advance moves the clock forward by d, firing every entry that comes
// due along the way in deadline order. Callbacks observe Now() equal to
// their own deadline, and callbacks they schedule that fall inside the
// advanced window fire during the same call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		e := c.popDue(target)
		if e == nil {
			break
		}
		if e.fn != nil {
			e.fn()
		} else {
			e.ch <- e.due
		}
	}

	c.mu.Lock()
	if c.now.Before(target) {
		c.now = target
	}
	c.mu.Unlock()
}

// popDue removes and returns the earliest live entry due at or before
// target, moving the clock to its deadline.
func (c *FakeClock) popDue(target time.Time) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.pending[:0]
	for _, e := range c.pending {
		if !e.done {
			live = append(live, e)
		}
	}
	c.pending = live
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due.Equal(live[j].due) {
			return live[i].seq < live[j].seq
		}
		return live[i].due.Before(live[j].due)
	})
	first := live[0]
	if first.due.After(target) {
		return nil
	}
	first.done = true
	c.pending = live[1:]
	if first.due.After(c.now) {
		c.now = first.due
	}
	c.changed.Broadcast()
	return first
}

// Pending returns the number of scheduled entries that have neither
// fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, e := range c.pending {
		if !e.done {
			n++
		}
	}
	return n
}

// WaitForPending blocks until at least n entries are scheduled. Use it
// when a goroutine under test registers a timer (for example a backoff
// wait) and the test must not advance before it has.
func (c *FakeClock) WaitForPending(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}
