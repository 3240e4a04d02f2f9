package delivery

import (
	"sync"
	"time"
)

// TaskKey addresses one scheduled task: a chat, the delivery that created it and the task name.
type TaskKey struct {
	ChatID     int64
	DeliveryID string
	Name       string
}

// Timers is the arena deliveries schedule their work in. Scheduling a key that is already
// pending replaces it.
type Timers interface {
	Now() time.Time
	// Once runs fn after d.
	Once(key TaskKey, d time.Duration, fn func())
	// Repeat runs fn after first and then every interval for as long as fn returns true.
	Repeat(key TaskKey, first, interval time.Duration, fn func() bool)
	Cancel(key TaskKey)
	Pending() int
}

type task struct {
	timer *time.Timer
	seq   uint64
}

// Arena is the in-memory Timers implementation backed by time.AfterFunc. Nothing is
// persisted; pending tasks are lost on restart.
type Arena struct {
	mu    sync.Mutex
	seq   uint64
	tasks map[TaskKey]*task
}

func NewArena() *Arena {
	return &Arena{tasks: map[TaskKey]*task{}}
}

func (a *Arena) Now() time.Time { return time.Now() }

func (a *Arena) Once(key TaskKey, d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.replaceLocked(key)
	a.tasks[key] = &task{seq: seq, timer: time.AfterFunc(d, func() {
		if a.drop(key, seq) {
			fn()
		}
	})}
}

func (a *Arena) Repeat(key TaskKey, first, interval time.Duration, fn func() bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.replaceLocked(key)
	tick := func() {
		if !a.alive(key, seq) {
			return
		}
		if !fn() {
			a.drop(key, seq)
			return
		}
		a.mu.Lock()
		if t, ok := a.tasks[key]; ok && t.seq == seq {
			t.timer.Reset(interval)
		}
		a.mu.Unlock()
	}
	a.tasks[key] = &task{seq: seq, timer: time.AfterFunc(first, tick)}
}

func (a *Arena) Cancel(key TaskKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tasks[key]; ok {
		t.timer.Stop()
		delete(a.tasks, key)
	}
}

func (a *Arena) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tasks)
}

// Stop cancels every pending task.
func (a *Arena) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, t := range a.tasks {
		t.timer.Stop()
		delete(a.tasks, k)
	}
}

func (a *Arena) replaceLocked(key TaskKey) uint64 {
	if t, ok := a.tasks[key]; ok {
		t.timer.Stop()
	}
	a.seq++
	return a.seq
}

func (a *Arena) alive(key TaskKey, seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks[key]
	return ok && t.seq == seq
}

func (a *Arena) drop(key TaskKey, seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks[key]
	if !ok || t.seq != seq {
		return false
	}
	delete(a.tasks, key)
	return true
}
