// Package evictiontest provides a manually advanced clock for tests that
// need to cross eviction deadlines without sleeping.
package evictiontest

import (
	"sort"
	"sync"
	"time"
)

// Clock implements eviction.Clock on virtual time. Callbacks run
// synchronously inside Advance, in fire-time order.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []timer
}

type timer struct {
	at  time.Time
	seq int
	f   func()
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.timers = append(c.timers, timer{at: c.now.Add(d), seq: c.seq, f: f})
}

// Advance moves virtual time forward and runs every timer that became due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []timer
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.f()
	}
}

// Armed reports how many timers have not fired yet.
func (c *Clock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
