package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sipclient/txlayer/internal/timer"
)

func TestNewTimer(t *testing.T) {
	t.Parallel()

	duration := 100 * time.Millisecond
	tm := timer.NewTimer(duration)

	if tm.Duration() != duration {
		t.Errorf("expected duration %v, got %v", duration, tm.Duration())
	}
	if tm.State() != timer.StateRunning {
		t.Errorf("expected state %v, got %v", timer.StateRunning, tm.State())
	}
}

func TestTimer_Elapsed(t *testing.T) {
	t.Parallel()

	tm := timer.NewTimer(100 * time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	if elapsed := tm.Elapsed(); elapsed < 10*time.Millisecond {
		t.Errorf("expected elapsed >= 10ms, got %v", elapsed)
	}

	tm.Stop()
	if elapsed := tm.Elapsed(); elapsed < 10*time.Millisecond {
		t.Errorf("expected elapsed after stop >= 10ms, got %v", elapsed)
	}
}

func TestTimer_Expired(t *testing.T) {
	t.Parallel()

	tm := timer.NewTimer(10 * time.Millisecond)
	if tm.Expired() {
		t.Error("timer should not be expired immediately")
	}

	time.Sleep(20 * time.Millisecond)
	if !tm.Expired() {
		t.Error("timer should be expired after its duration elapses")
	}
}

func TestTimer_Stop(t *testing.T) {
	t.Parallel()

	tm := timer.NewTimer(50 * time.Millisecond)
	if !tm.Stop() {
		t.Error("expected first Stop to succeed")
	}
	if tm.Stop() {
		t.Error("expected second Stop to fail, timer already stopped")
	}
	if tm.State() != timer.StateStopped {
		t.Errorf("expected state %v, got %v", timer.StateStopped, tm.State())
	}
	if tm.Expired() {
		t.Error("a stopped timer must never report expired")
	}
}

func TestTimer_SetCallback_FiresOnExpiry(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	tm := timer.NewTimer(10 * time.Millisecond)
	tm.SetCallback(func() { fired.Store(true) })

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fired.Load() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !fired.Load() {
		t.Error("expected callback to fire after the timer expired")
	}
}

func TestTimer_SetCallback_StoppedNeverFires(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	tm := timer.NewTimer(20 * time.Millisecond)
	tm.SetCallback(func() { fired.Store(true) })
	if !tm.Stop() {
		t.Fatal("expected Stop to succeed before expiry")
	}

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Error("a callback attached before Stop must not fire afterwards")
	}
}

func TestTimer_SetCallback_AlreadyExpiredFiresImmediately(t *testing.T) {
	t.Parallel()

	tm := timer.NewTimer(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if !tm.Expired() {
		t.Fatal("timer should have expired by now")
	}

	var fired atomic.Bool
	tm.SetCallback(func() { fired.Store(true) })

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fired.Load() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !fired.Load() {
		t.Error("attaching a callback to an already-expired timer must fire it immediately")
	}
}

func TestTimer_Reset(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tm := timer.NewTimer(10 * time.Millisecond)
	tm.SetCallback(func() { calls.Add(1) })

	tm.Reset(50 * time.Millisecond)
	if tm.State() != timer.StateRunning {
		t.Errorf("expected state %v after reset, got %v", timer.StateRunning, tm.State())
	}

	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("callback fired before the reset duration elapsed")
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() != 1 {
		t.Errorf("expected callback to fire exactly once after reset, got %d calls", calls.Load())
	}
}
