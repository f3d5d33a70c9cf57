// Package progress reports scan progress to the operator.
//
// The Reporter implements the two-level progress surface the scanner
// expects: a coarse operation label (per root folder / per phase) and a
// fine-grained path detail (per directory). It is safe to call from the
// scanning worker; updates are throttled by the underlying bar so the
// reporting path never blocks traversal.
package progress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Reporter wraps a spinner-mode progress bar with enabled/disabled
// handling. All methods are no-ops when disabled.
type Reporter struct {
	bar *progressbar.ProgressBar

	mu        sync.Mutex
	operation string
	detail    string
}

// New creates a Reporter. If enabled=false, returns a Reporter where all
// methods are no-ops.
func New(enabled bool) *Reporter {
	if !enabled {
		return &Reporter{}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)
	return &Reporter{bar: bar}
}

// Operation sets the coarse operation label ("Scanning /proj ...").
func (r *Reporter) Operation(format string, args ...any) {
	if r.bar == nil {
		return
	}
	r.mu.Lock()
	r.operation = fmt.Sprintf(format, args...)
	r.detail = ""
	r.describeLocked()
	r.mu.Unlock()
}

// Report satisfies the scanner's progress callback signature: operation
// label plus current path detail.
func (r *Reporter) Report(operation, detail string) {
	if r.bar == nil {
		return
	}
	r.mu.Lock()
	r.operation = operation
	r.detail = detail
	r.describeLocked()
	r.mu.Unlock()
}

func (r *Reporter) describeLocked() {
	if r.detail == "" {
		r.bar.Describe(r.operation)
		return
	}
	r.bar.Describe(r.operation + " " + r.detail)
}

// Tick re-renders the spinner; wired as the watchdog's onTick hook.
func (r *Reporter) Tick() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Add(0)
}

// Finish clears the bar and prints a final summary line.
func (r *Reporter) Finish(summary string) {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	fmt.Fprintln(os.Stderr, "✔ "+summary)
}
