//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// tickFunc is invoked once per armed interval. It returns the interval to
// the next tick and whether the clock should stay armed. Ticks must be
// bounded and non-blocking.
type tickFunc func(now time.Time) (time.Duration, bool)

// bitClock is a self-rescheduling one-shot timer that drives a bit engine's
// sampling schedule. At most one timer instance is armed at any time.
//
// Deadlines are tracked as absolute times: the next tick fires one interval
// after the previous deadline, not after the callback ran, so the schedule
// does not drift with callback latency.
type bitClock struct {
	clk  clock.Clock
	tick tickFunc

	mu       sync.Mutex
	cond     *sync.Cond
	timer    *clock.Timer
	deadline time.Time
	session  uint64
	armed    bool
	inflight int
}

func newBitClock(clk clock.Clock, tick tickFunc) *bitClock {
	c := &bitClock{clk: clk, tick: tick}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// active reports whether a timer session is currently armed.
func (c *bitClock) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// arm schedules the first tick at the given deadline. It reports false if a
// session is already armed.
func (c *bitClock) arm(deadline time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed {
		return false
	}
	c.session++
	sess := c.session
	c.armed = true
	c.deadline = deadline
	c.inflight++
	c.timer = c.clk.AfterFunc(deadline.Sub(c.clk.Now()), func() { c.fire(sess) })
	return true
}

// cancel disarms the clock and blocks until any in-flight tick has fully
// completed. It must not be called while holding the owning engine's mutex,
// or the in-flight tick could never finish.
func (c *bitClock) cancel() {
	c.mu.Lock()
	c.session++
	c.armed = false
	if c.timer != nil && c.timer.Stop() {
		c.inflight--
	}
	for c.inflight > 0 {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

func (c *bitClock) fire(sess uint64) {
	c.mu.Lock()
	if !c.armed || sess != c.session {
		c.finish()
		return
	}
	c.mu.Unlock()

	next, again := c.tick(c.clk.Now())

	c.mu.Lock()
	if !c.armed || sess != c.session {
		// Canceled while the tick was running.
		c.finish()
		return
	}
	if !again {
		c.armed = false
		c.finish()
		return
	}
	c.deadline = c.deadline.Add(next)
	c.timer.Reset(c.deadline.Sub(c.clk.Now()))
	c.mu.Unlock()
}

// finish retires one in-flight tick. Called with c.mu held; unlocks it.
func (c *bitClock) finish() {
	c.inflight--
	c.cond.Broadcast()
	c.mu.Unlock()
}
