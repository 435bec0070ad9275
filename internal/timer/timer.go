// Package timer provides a state-tracking wrapper around time.Timer used by
// the transaction FSMs for the retransmission and lifetime timers of
// RFC 3261 §17.1.
package timer

import (
	"sync"
	"time"
)

// State represents the current state of a Timer.
type State string

const (
	// StateRunning indicates the timer is currently running.
	StateRunning State = "running"
	// StateStopped indicates the timer was stopped before expiration.
	StateStopped State = "stopped"
	// StateExpired indicates the timer has expired.
	StateExpired State = "expired"
)

// Timer wraps a time.Timer with an observable state so that FSM actions can
// tell whether a callback firing corresponds to the timer's current
// generation, or is a stale callback from a timer that was since stopped or
// reset (and so must be ignored).
type Timer struct {
	mu               sync.Mutex
	startTime        time.Time
	duration         time.Duration
	stopTime         time.Time
	state            State
	callback         func()
	callbackExecuted bool
	realTimer        *time.Timer
}

// NewTimer creates a new Timer with the given duration. The timer is started
// immediately but will not fire anything until a callback is attached with
// SetCallback.
func NewTimer(duration time.Duration) *Timer {
	return &Timer{
		startTime: time.Now(),
		duration:  duration,
		state:     StateRunning,
	}
}

// AfterFunc creates a new running Timer that calls f in its own goroutine
// when it expires, analogous to time.AfterFunc.
func AfterFunc(duration time.Duration, f func()) *Timer {
	t := NewTimer(duration)
	t.SetCallback(f)
	return t
}

// State returns the current timer state.
func (t *Timer) State() State {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns the timer's configured duration.
func (t *Timer) Duration() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedUnsafe()
}

func (t *Timer) elapsedUnsafe() time.Duration {
	switch t.state {
	case StateRunning:
		return time.Since(t.startTime)
	case StateStopped, StateExpired:
		if !t.stopTime.IsZero() {
			return t.stopTime.Sub(t.startTime)
		}
		return t.duration
	}
	return t.duration
}

// Expired reports whether the timer has fired.
func (t *Timer) Expired() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiredUnsafe()
}

func (t *Timer) expiredUnsafe() bool {
	if t.state == StateExpired {
		return true
	}
	if t.state == StateStopped {
		return false
	}
	return time.Since(t.startTime) >= t.duration
}

// Stop stops the timer and clears any pending callback. It returns false if
// the timer was already stopped or had already expired.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return false
	}

	t.stopTime = time.Now()
	t.state = StateStopped
	t.callback = nil

	if t.realTimer != nil {
		t.realTimer.Stop()
		t.realTimer = nil
	}
	return true
}

// SetCallback attaches f to be invoked, in its own goroutine, when the timer
// expires. If the timer already expired, f runs immediately. Setting the
// callback on a stopped timer is a no-op.
func (t *Timer) SetCallback(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateStopped {
		return
	}

	t.callback = f

	if t.expiredUnsafe() && !t.callbackExecuted {
		t.callbackExecuted = true
		go f()
		return
	}

	if t.state != StateRunning {
		return
	}

	if t.realTimer != nil {
		t.realTimer.Stop()
	}

	remaining := t.duration - time.Since(t.startTime)
	if remaining <= 0 {
		remaining = time.Nanosecond
	}

	t.realTimer = time.AfterFunc(remaining, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning || t.callbackExecuted {
		return
	}
	t.state = StateExpired
	t.stopTime = time.Now()
	t.callbackExecuted = true

	if cb := t.callback; cb != nil {
		go cb()
	}
}

// Reset restarts the timer from now with a new duration. Any callback
// previously attached with SetCallback is preserved and rearmed; call Stop
// first to discard it instead.
func (t *Timer) Reset(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = time.Now()
	t.duration = duration
	t.state = StateRunning
	t.stopTime = time.Time{}
	t.callbackExecuted = false

	if t.realTimer != nil {
		t.realTimer.Stop()
		t.realTimer = nil
	}

	if t.callback != nil {
		t.realTimer = time.AfterFunc(duration, t.fire)
	}
}
