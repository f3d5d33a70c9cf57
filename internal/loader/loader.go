// Package loader orchestrates profile loading: scan the profile's roots
// under the appropriate watchdog, retry once against a fallback profile
// on failure, and guarantee a usable (possibly empty) state no matter
// what.
//
// Failure policy per attempt outcome:
//
//	Completed          → commit the session, restore checked state
//	TimedOut / Errored → one retry against the fallback selector's choice
//	Skipped            → no retry; jump straight to the selector's choice
//	Cancelled          → no retry; minimal default state
//
// Fallback attempts run without a timeout watchdog: the selector only
// returns profiles whose roots are all local/fast (or the empty minimal
// state), so the bounded-latency machinery is not needed.
//
// Checked-state restoration is a strict two-phase protocol: BuildTree
// returns the final node map, then saved checks are applied exactly once,
// synchronously, over it. Saved checks for paths absent from the new map
// are dropped.
package loader

import (
	"time"

	"github.com/mgrachev/treesnap/internal/fallback"
	"github.com/mgrachev/treesnap/internal/history"
	"github.com/mgrachev/treesnap/internal/ignore"
	"github.com/mgrachev/treesnap/internal/log"
	"github.com/mgrachev/treesnap/internal/pathclass"
	"github.com/mgrachev/treesnap/internal/probe"
	"github.com/mgrachev/treesnap/internal/profile"
	"github.com/mgrachev/treesnap/internal/scanner"
	"github.com/mgrachev/treesnap/internal/types"
	"github.com/mgrachev/treesnap/internal/watchdog"
)

// Config wires the loader's collaborators.
type Config struct {
	Store   *profile.Store
	Journal *history.Journal // may be nil (history disabled)
	Logger  *log.Logger

	Report scanner.ProgressFunc // may be nil
	OnTick func()               // serviced between watchdog polls; may be nil
	ErrCh  chan error           // non-fatal scan diagnostics; may be nil

	Budget        time.Duration // whole-scan; zero means watchdog default
	AccessTimeout time.Duration // per-directory; zero means probe default

	// DisableTimeouts forces the direct runner regardless of the
	// profile's enable_timeouts toggle (the CLI --no-timeouts flag).
	DisableTimeouts bool
}

// Result is the guaranteed-usable product of Load.
type Result struct {
	Profile *profile.Profile
	Session *scanner.Session
	Outcome types.Outcome

	// UsedFallback is set when Profile differs from the requested one.
	UsedFallback bool
}

// Loader loads profiles with watchdog-guarded scanning and fallback.
type Loader struct {
	cfg        Config
	classifier *pathclass.Classifier
	selector   *fallback.Selector
}

// New creates a Loader.
func New(cfg Config) *Loader {
	classifier := pathclass.New()
	return &Loader{
		cfg:        cfg,
		classifier: classifier,
		selector:   fallback.New(cfg.Store, classifier),
	}
}

// Load scans the named profile and always returns a usable Result. The
// token carries operator skip/cancel/disable-timeouts for the first
// attempt; fallback attempts are all-local and run unguarded.
func (l *Loader) Load(name string, token *watchdog.Token) *Result {
	prof, err := l.cfg.Store.Load(name)
	if err != nil {
		// Malformed persisted state: surface it and continue with the
		// defaults Load returned.
		l.cfg.Logger.Warnf("profile %s: %v; continuing with defaults", name, err)
	}

	res := l.attempt(prof, l.pickWatchdog(prof, token))
	switch {
	case res.Outcome == types.OutcomeCompleted:
		return res

	case res.Outcome == types.OutcomeCancelled:
		l.cfg.Logger.Warnf("load of %s cancelled; using minimal default state", prof.Name)
		return l.minimal(res.Outcome)

	default: // Skipped, TimedOut, Errored
		fb := l.selector.Choose(prof.Name)
		l.cfg.Logger.Warnf("load of %s %s; falling back to profile %s", prof.Name, res.Outcome, fb.Name)

		fbRes := l.attempt(fb, watchdog.NewDirect(nil))
		fbRes.UsedFallback = true
		if fbRes.Outcome == types.OutcomeCompleted {
			return fbRes
		}

		l.cfg.Logger.Errorf("fallback profile %s also failed (%s); using minimal default state", fb.Name, fbRes.Outcome)
		return l.minimal(res.Outcome)
	}
}

// attempt runs one scan generation for prof under wd and, on success,
// restores checked state over the final mapping.
func (l *Loader) attempt(prof *profile.Profile, wd watchdog.Watchdog) *Result {
	matcher := ignore.New(prof.IgnorePatterns, prof.FilterSystemFolders)
	prb := probe.New(l.classifier, l.cfg.AccessTimeout)
	scan := scanner.New(matcher, prb, l.classifier, l.cfg.Report, l.cfg.ErrCh)

	session := scanner.NewSession()
	start := time.Now()
	outcome := wd.Run(func(stop func() bool) error {
		return scan.BuildTree(session, prof.RootFolders, stop)
	})

	if l.cfg.Journal != nil {
		if err := l.cfg.Journal.Append(prof.Name, outcome.Outcome, session.Generation, len(session.Nodes), time.Since(start)); err != nil {
			l.cfg.Logger.Warnf("history: %v", err)
		}
	}

	if outcome.Outcome != types.OutcomeCompleted {
		// Discard the partial session; only completed generations are
		// ever committed.
		return &Result{Profile: prof, Session: scanner.NewSession(), Outcome: outcome.Outcome}
	}

	applyChecks(prof, session)
	return &Result{Profile: prof, Session: session, Outcome: types.OutcomeCompleted}
}

// pickWatchdog chooses the strategy for the first attempt: the polling
// watchdog when timeouts are enabled and any root is flagged problematic,
// the direct runner otherwise (the all-local fast path).
func (l *Loader) pickWatchdog(prof *profile.Profile, token *watchdog.Token) watchdog.Watchdog {
	if !l.cfg.DisableTimeouts && prof.EnableTimeouts && !l.classifier.AllLocal(prof.RootFolders) {
		return watchdog.NewPolling(l.cfg.Budget, ensureToken(token), l.cfg.OnTick)
	}
	return watchdog.NewDirect(token)
}

func (l *Loader) minimal(outcome types.Outcome) *Result {
	return &Result{
		Profile: profile.Minimal(),
		Session: scanner.NewSession(),
		Outcome: outcome,
	}
}

// applyChecks is phase two of check restoration: runs once over the
// final mapping, then prunes saved checks whose paths did not survive
// the rescan.
func applyChecks(prof *profile.Profile, session *scanner.Session) {
	surviving := make(map[string]bool, len(prof.FolderChecks))
	for path, checked := range prof.FolderChecks {
		node, ok := session.Nodes[path]
		if !ok {
			continue
		}
		node.Checked = checked
		surviving[path] = checked
	}
	prof.FolderChecks = surviving
}

func ensureToken(token *watchdog.Token) *watchdog.Token {
	if token == nil {
		return watchdog.NewToken()
	}
	return token
}
