package watchdog

import "sync/atomic"

// Signal is the operator-requested cancellation state of a scan attempt.
type Signal int32

const (
	SignalNone Signal = iota
	SignalSkip
	SignalCancel
	SignalDisableTimeouts
)

func (s Signal) String() string {
	switch s {
	case SignalSkip:
		return "skip"
	case SignalCancel:
		return "cancel"
	case SignalDisableTimeouts:
		return "disable_timeouts"
	default:
		return "none"
	}
}

// Token is the shared cancellation flag between the controller/UI (writer)
// and the scanning worker (reader).
//
// Transitions are monotonic: Skip and Cancel are terminal, and
// DisableTimeouts can only be followed by Skip or Cancel. A token is valid
// for a single scan attempt.
type Token struct {
	state atomic.Int32
}

// NewToken creates a Token in the None state.
func NewToken() *Token { return &Token{} }

// RequestSkip asks the controller to abandon the current attempt and move
// to a fallback. Returns false if a terminal signal was already set.
func (t *Token) RequestSkip() bool { return t.transition(SignalSkip) }

// RequestCancel asks the controller to abandon the current attempt and
// load the default profile. Returns false if a terminal signal was
// already set.
func (t *Token) RequestCancel() bool { return t.transition(SignalCancel) }

// RequestDisableTimeouts suspends elapsed-time checks for the remainder
// of the current attempt. Returns false if a terminal signal was already
// set.
func (t *Token) RequestDisableTimeouts() bool { return t.transition(SignalDisableTimeouts) }

// IsCancelled returns the current signal.
func (t *Token) IsCancelled() Signal { return Signal(t.state.Load()) }

// ShouldStop reports whether the worker must stop at its next loop
// boundary. DisableTimeouts is not a stop request.
func (t *Token) ShouldStop() bool {
	s := t.IsCancelled()
	return s == SignalSkip || s == SignalCancel
}

func (t *Token) transition(to Signal) bool {
	for {
		cur := t.state.Load()
		if Signal(cur) == SignalSkip || Signal(cur) == SignalCancel {
			return false
		}
		if Signal(cur) == to {
			return true
		}
		if t.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}
