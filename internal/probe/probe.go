// Package probe determines, within a bounded time, whether a directory is
// reachable.
//
// Local/fast paths get a direct existence check with no timeout machinery.
// Paths the classifier flags as problematic are probed on a separate
// goroutine with a deadline: the probe also samples the first few entries
// of the directory to catch mounts that stat fine but hang on listing.
// A probe that misses its deadline is abandoned, not force-killed; its
// eventual result is discarded.
package probe

import (
	"io"
	"os"
	"time"

	"github.com/mgrachev/treesnap/internal/pathclass"
)

// DefaultTimeout is the per-directory access budget, distinct from the
// whole-scan budget enforced by the watchdog.
const DefaultTimeout = 10 * time.Second

// listSample caps how many directory entries the probe reads. Listing a
// handful of entries is enough to detect a hanging mount without paying
// for a full enumeration of huge directories.
const listSample = 5

// Probe checks directory accessibility with bounded latency.
type Probe struct {
	classifier *pathclass.Classifier
	timeout    time.Duration
	slowProbe  func(string) bool // injectable for tests simulating hung mounts
}

// New creates a Probe. A zero or negative timeout falls back to
// DefaultTimeout.
func New(classifier *pathclass.Classifier, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{classifier: classifier, timeout: timeout, slowProbe: probeSlow}
}

// Timeout returns the per-directory access budget.
func (p *Probe) Timeout() time.Duration { return p.timeout }

// CheckAccessible reports whether path exists, is a directory, and
// answers a capped listing within the probe's timeout.
//
// Fast paths skip the timeout wrapper entirely: a local stat is assumed
// to be sub-millisecond and wrapping it in a goroutine per directory
// would dominate scan cost on large local trees.
func (p *Probe) CheckAccessible(path string) bool {
	if !p.classifier.IsProblematic(path) {
		return isDir(path)
	}

	// Buffered so the orphaned goroutine can always complete its send
	// and exit after a timeout.
	resultCh := make(chan bool, 1)
	go func() {
		resultCh <- p.slowProbe(path)
	}()

	select {
	case ok := <-resultCh:
		return ok
	case <-time.After(p.timeout):
		return false
	}
}

// probeSlow performs the existence check plus a capped listing. Listing
// errors are swallowed: a directory that exists but refuses enumeration
// is still reported accessible, matching the lenient treatment of
// partially readable network shares.
func probeSlow(path string) bool {
	if !isDir(path) {
		return false
	}

	dir, err := os.Open(path)
	if err != nil {
		return true
	}
	defer func() { _ = dir.Close() }()

	if _, err := dir.ReadDir(listSample); err != nil && err != io.EOF {
		return true
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
