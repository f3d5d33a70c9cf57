// Package watchdog enforces a wall-clock budget over a blocking scan.
//
// # Concurrency Model
//
// Exactly two units of execution participate:
//
//  1. CONTROLLER (the caller of Run)
//     - Never blocks for longer than one tick (~100ms)
//     - Each tick: services the onTick hook, checks the operator token,
//       checks elapsed time against the budget
//  2. WORKER (one goroutine running the scan function)
//     - Cooperative: receives a stop predicate and is expected to check
//       it at traversal loop boundaries
//     - Never forcibly terminated; on Skip/Cancel/TimedOut the controller
//       stops waiting and the worker's eventual result is discarded
//
// Abandoning the worker is safe because the scan performs no external
// mutation: results travel through a one-shot channel and are only
// committed by the controller on a Completed outcome.
//
// The budget gets one grace extension before the attempt is declared
// TimedOut. The operator can also disable the elapsed-time check entirely
// for the remainder of the attempt.
package watchdog

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/mgrachev/treesnap/internal/types"
)

const (
	// DefaultBudget is the total wall-clock allowance for one scan attempt.
	DefaultBudget = 60 * time.Second
	// Grace is the single extension granted after the budget elapses.
	Grace = 30 * time.Second
	// tick is the controller poll interval.
	tick = 100 * time.Millisecond
)

// Func is a scan attempt. The stop predicate turns true when the attempt
// is abandoned; implementations should check it at loop boundaries and
// return types.ErrCancelled.
type Func func(stop func() bool) error

// Result pairs the terminal outcome of an attempt with the worker error,
// if the worker finished in time to report one.
type Result struct {
	Outcome types.Outcome
	Err     error
}

// Watchdog runs a scan attempt to a terminal outcome. Implementations are
// selected by the caller: the polling watchdog when any root is flagged
// problematic and timeouts are enabled, the direct runner otherwise.
type Watchdog interface {
	Run(fn Func) Result
}

// Polling is the portable watchdog strategy: the worker runs on its own
// goroutine while the controller polls it on a short tick.
type Polling struct {
	budget time.Duration
	grace  time.Duration
	token  *Token
	onTick func() // services UI/progress between polls; may be nil
}

// NewPolling creates a polling watchdog. A zero or negative budget falls
// back to DefaultBudget. token must not be nil; onTick may be.
func NewPolling(budget time.Duration, token *Token, onTick func()) *Polling {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Polling{budget: budget, grace: Grace, token: token, onTick: onTick}
}

// Run executes fn under the budget. The returned outcome is terminal for
// this attempt; on anything but Completed and Errored the worker result
// is discarded.
func (p *Polling) Run(fn Func) Result {
	var abandoned atomic.Bool
	stop := func() bool {
		return abandoned.Load() || p.token.ShouldStop()
	}

	// Buffered so the worker can always deliver and exit, even after the
	// controller stopped listening.
	done := make(chan error, 1)
	go func() {
		done <- fn(stop)
	}()

	start := time.Now()
	deadline := start.Add(p.budget)
	timeoutsOff := false
	graceUsed := false

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return resolve(err, p.token)
		case <-ticker.C:
			if p.onTick != nil {
				p.onTick()
			}

			switch p.token.IsCancelled() {
			case SignalSkip:
				abandoned.Store(true)
				return Result{Outcome: types.OutcomeSkipped, Err: types.ErrCancelled}
			case SignalCancel:
				abandoned.Store(true)
				return Result{Outcome: types.OutcomeCancelled, Err: types.ErrCancelled}
			case SignalDisableTimeouts:
				timeoutsOff = true
			}

			if timeoutsOff || time.Now().Before(deadline) {
				continue
			}
			if !graceUsed {
				graceUsed = true
				deadline = deadline.Add(p.grace)
				continue
			}
			abandoned.Store(true)
			return Result{Outcome: types.OutcomeTimedOut, Err: types.ErrScanTimeout}
		}
	}
}

// Direct runs the scan synchronously with no budget: the fast path for
// all-local roots and for attempts with timeouts disabled. Operator
// signals still apply through the token's stop predicate.
type Direct struct {
	token *Token
}

// NewDirect creates a direct runner. token may be nil when no
// cancellation surface is wired (non-interactive fast path).
func NewDirect(token *Token) *Direct { return &Direct{token: token} }

func (d *Direct) Run(fn Func) Result {
	stop := func() bool { return false }
	if d.token != nil {
		stop = d.token.ShouldStop
	}
	return resolve(fn(stop), d.token)
}

// resolve maps a worker error to a terminal outcome, consulting the token
// to distinguish operator skip from operator cancel.
func resolve(err error, token *Token) Result {
	switch {
	case err == nil:
		return Result{Outcome: types.OutcomeCompleted}
	case errors.Is(err, types.ErrCancelled):
		if token != nil && token.IsCancelled() == SignalSkip {
			return Result{Outcome: types.OutcomeSkipped, Err: err}
		}
		return Result{Outcome: types.OutcomeCancelled, Err: err}
	case errors.Is(err, types.ErrScanTimeout):
		return Result{Outcome: types.OutcomeTimedOut, Err: err}
	default:
		return Result{Outcome: types.OutcomeErrored, Err: err}
	}
}
