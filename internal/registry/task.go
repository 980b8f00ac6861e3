package registry

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a cancellable one-shot timer. Once Cancel returns true the callback
// is guaranteed not to run; once the callback has started Cancel returns false.
type Task struct {
	mu       sync.Mutex
	timer    clockwork.Timer
	fired    bool
	canceled bool

	Reason  string
	ArmedAt time.Time
	Delay   time.Duration
}

// Schedule arms fn to run after d on clock.
func Schedule(clock clockwork.Clock, d time.Duration, reason string, fn func()) *Task {
	t := &Task{
		Reason:  reason,
		ArmedAt: clock.Now(),
		Delay:   d,
	}
	t.timer = clock.AfterFunc(d, func() {
		if !t.begin() {
			return
		}
		fn()
	})
	return t
}

func (t *Task) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return false
	}
	t.fired = true
	return true
}

// Cancel stops the task. It reports whether the callback was prevented.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.canceled {
		return false
	}
	t.canceled = true
	t.timer.Stop()
	return true
}

// Pending reports whether the task can still fire.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fired && !t.canceled
}

// Due is the time the task was scheduled to fire.
func (t *Task) Due() time.Time {
	return t.ArmedAt.Add(t.Delay)
}
