package timer

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

const (
	stateIdle = iota
	stateActive
	stateExpired
)

// Timer is a cancellable one-shot timer. Unlike time.Timer it remembers
// whether it fired or was stopped, so callers holding a handle can ask what
// happened to it.
type Timer struct {
	t  *time.Timer
	fn func()

	l         *deadlock.Mutex // guards the fields below
	state     int
	fired     bool
	duration  time.Duration
	startedAt time.Time
}

// AfterFunc returns an idle Timer that, once started, waits for d and then
// calls f in its own goroutine.
func AfterFunc(d time.Duration, f func()) *Timer {
	t := &Timer{
		duration: d,
		l:        new(deadlock.Mutex),
	}
	t.fn = func() {
		t.l.Lock()
		if t.state != stateActive {
			t.l.Unlock()
			return
		}
		t.state = stateExpired
		t.fired = true
		t.l.Unlock()
		f()
	}
	return t
}

// Schedule is AfterFunc followed by Start.
func Schedule(d time.Duration, f func()) *Timer {
	t := AfterFunc(d, f)
	t.Start()
	return t
}

// Start arms the timer. It returns false if the timer was already started,
// has fired or was stopped.
func (t *Timer) Start() bool {
	t.l.Lock()
	defer t.l.Unlock()
	if t.state != stateIdle {
		return false
	}
	t.startedAt = time.Now()
	t.state = stateActive
	t.t = time.AfterFunc(t.duration, t.fn)
	return true
}

// Stop prevents the Timer from firing. It returns true if the call stopped
// an armed timer, false if it had already fired or been stopped. Stop is safe
// to call on a nil Timer.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}

	t.l.Lock()
	defer t.l.Unlock()
	if t.state == stateExpired {
		return false
	}
	wasActive := t.state == stateActive
	t.state = stateExpired
	if wasActive {
		t.t.Stop()
	}
	return wasActive
}

// Fired reports whether the callback was invoked.
func (t *Timer) Fired() bool {
	if t == nil {
		return false
	}

	t.l.Lock()
	defer t.l.Unlock()
	return t.fired
}

// Active reports whether the timer is armed and has not fired yet.
func (t *Timer) Active() bool {
	if t == nil {
		return false
	}

	t.l.Lock()
	defer t.l.Unlock()
	return t.state == stateActive
}

// TimeLeft returns the duration left to run before the timer expires.
// TimeLeft is safe to be called on a nil timer and will return 0 in that case.
func (t *Timer) TimeLeft() time.Duration {
	if t == nil {
		return 0
	}

	t.l.Lock()
	defer t.l.Unlock()

	switch t.state {
	case stateIdle:
		return t.duration
	case stateActive:
		left := t.duration - time.Since(t.startedAt)
		if left < 0 {
			return 0
		}
		return left
	default:
		return 0
	}
}
