package poker

import (
	"fmt"
	"time"
)

// TimerState enumerates turn-timer states.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// TurnTimer is the per-game countdown for the acting player. It is passive:
// no goroutine watches it. Callers pass in the current time and the
// controller resolves an elapsed deadline lazily at the start of every
// game-touching operation.
type TurnTimer struct {
	State    TimerState `json:"state"`
	Deadline time.Time  `json:"deadline"`
	// Remaining preserves the unexpired duration across a pause.
	Remaining time.Duration `json:"remaining,omitempty"`
}

// Start begins a countdown for the acting player.
func (t *TurnTimer) Start(d time.Duration, now time.Time) {
	t.State = TimerRunning
	t.Deadline = now.Add(d)
	t.Remaining = 0
}

// Pause suspends a running countdown, preserving the remaining duration.
func (t *TurnTimer) Pause(now time.Time) error {
	if t.State != TimerRunning {
		return fmt.Errorf("cannot pause timer in state %s", t.State)
	}
	rem := t.Deadline.Sub(now)
	if rem < 0 {
		rem = 0
	}
	t.State = TimerPaused
	t.Remaining = rem
	t.Deadline = time.Time{}
	return nil
}

// Resume restarts a paused countdown with the preserved remainder.
func (t *TurnTimer) Resume(now time.Time) error {
	if t.State != TimerPaused {
		return fmt.Errorf("cannot resume timer in state %s", t.State)
	}
	t.State = TimerRunning
	t.Deadline = now.Add(t.Remaining)
	t.Remaining = 0
	return nil
}

// Clear returns the timer to idle, called when the acting player responds
// before expiry or when no hand is running.
func (t *TurnTimer) Clear() {
	*t = TurnTimer{}
}

// CheckExpire transitions Running to Expired when the deadline has passed
// and reports whether the timer is expired.
func (t *TurnTimer) CheckExpire(now time.Time) bool {
	if t.State == TimerRunning && !now.Before(t.Deadline) {
		t.State = TimerExpired
		t.Deadline = time.Time{}
	}
	return t.State == TimerExpired
}
