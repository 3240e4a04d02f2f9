// Package deliverytest provides a manually advanced clock implementing delivery.Timers.
package deliverytest

import (
	"sync"
	"time"

	"catalog-tg-bot/internal/delivery"
)

type task struct {
	due      time.Time
	interval time.Duration
	once     func()
	repeat   func() bool
	order    uint64
}

// Clock fires scheduled tasks only when Advance is called. Tasks due at the same instant
// run in the order they were first scheduled.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	order uint64
	tasks map[delivery.TaskKey]*task
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start, tasks: map[delivery.TaskKey]*task{}}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Once(key delivery.TaskKey, d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order++
	c.tasks[key] = &task{due: c.now.Add(d), once: fn, order: c.order}
}

func (c *Clock) Repeat(key delivery.TaskKey, first, interval time.Duration, fn func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order++
	c.tasks[key] = &task{due: c.now.Add(first), interval: interval, repeat: fn, order: c.order}
}

func (c *Clock) Cancel(key delivery.TaskKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, key)
}

func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Stall moves the clock forward by d without running anything, as if the process had
// been paused. Overdue tasks fire on the next Advance, at the stalled time.
func (c *Clock) Stall(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Advance moves the clock forward by d, running every task that becomes due on the way.
// Callbacks run without the clock lock held and may schedule further tasks.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		key, t := c.nextLocked(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if t.due.After(c.now) {
			c.now = t.due
		}
		if t.once != nil {
			delete(c.tasks, key)
		}
		c.mu.Unlock()

		if t.once != nil {
			t.once()
			continue
		}
		again := t.repeat()
		c.mu.Lock()
		if cur, ok := c.tasks[key]; ok && cur == t {
			if again {
				// Missed ticks are dropped, like time.Ticker.
				t.due = t.due.Add(t.interval)
				for !t.due.After(c.now) {
					t.due = t.due.Add(t.interval)
				}
			} else {
				delete(c.tasks, key)
			}
		}
		c.mu.Unlock()
	}
}

func (c *Clock) nextLocked(limit time.Time) (delivery.TaskKey, *task) {
	var (
		bestKey delivery.TaskKey
		best    *task
	)
	for k, t := range c.tasks {
		if t.due.After(limit) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.order < best.order) {
			bestKey, best = k, t
		}
	}
	return bestKey, best
}
