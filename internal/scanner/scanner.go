// Package scanner enumerates directory trees into a deduplicated,
// filtered node mapping.
//
// # Traversal Model
//
// Unlike a throughput-oriented parallel walker, this scanner optimizes
// for bounded worst-case latency on unreliable filesystems. Traversal is
// a single depth-first walk with deterministic (lexicographic) ordering:
//
//	BuildTree(session, stop)
//	    │
//	    ├──► for each root (in operator order):
//	    │        ├──► probe accessibility (bounded; see internal/probe)
//	    │        │        └──► on failure: placeholder access-error node
//	    │        ├──► canonical-path dedup against the session visited set
//	    │        └──► walkDir(root)
//	    │                 ├──► stop-predicate check (loop boundary)
//	    │                 ├──► sorted listing
//	    │                 └──► per entry: ignore filter → self-reference
//	    │                      guard → cycle guard → register node →
//	    │                      recurse (local dirs only)
//	    │
//	    └──► session.Nodes is the result
//
// Problematic subdirectories (network mounts, unreachable paths) are
// registered as single warning nodes and never expanded: one slow mount
// must not multiply into an unbounded number of slow listings.
//
// Per-entry I/O errors are recovered locally and reported over errCh;
// they never abort the scan. Only operator cancellation (via the stop
// predicate) ends a scan early, with types.ErrCancelled.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mgrachev/treesnap/internal/ignore"
	"github.com/mgrachev/treesnap/internal/pathclass"
	"github.com/mgrachev/treesnap/internal/probe"
	"github.com/mgrachev/treesnap/internal/types"
)

// ProgressFunc receives coarse operation labels and per-directory path
// details. Implementations must not block the scanning worker.
type ProgressFunc func(operation, detail string)

// Scanner builds tree snapshots of root folders.
//
// The scanner is designed for single-use per generation: create with New,
// call BuildTree once with a fresh Session.
type Scanner struct {
	matcher    *ignore.Matcher
	probe      *probe.Probe
	classifier *pathclass.Classifier
	report     ProgressFunc
	errCh      chan error // Non-fatal errors (permission denied, etc.)
}

// New creates a Scanner. report and errCh may be nil.
func New(matcher *ignore.Matcher, prb *probe.Probe, classifier *pathclass.Classifier, report ProgressFunc, errCh chan error) *Scanner {
	return &Scanner{
		matcher:    matcher,
		probe:      prb,
		classifier: classifier,
		report:     report,
		errCh:      errCh,
	}
}

// BuildTree enumerates roots into the session. Inaccessible roots become
// placeholder nodes rather than failures; the only error return is
// types.ErrCancelled when the stop predicate fires.
func (s *Scanner) BuildTree(session *Session, roots []string, stop func() bool) error {
	for _, root := range roots {
		if stopped(stop) {
			return types.ErrCancelled
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			s.sendError(fmt.Errorf("resolve %s: %w", root, err))
			continue
		}

		s.progress("Scanning "+abs, "")

		canonical := canonicalPath(abs)
		if session.Visited(canonical) {
			// Already covered by an earlier root; skip before probing so a
			// duplicated slow root does not pay the access timeout twice.
			continue
		}

		if !s.probe.CheckAccessible(abs) {
			// Root exists in the operator's list but cannot be reached
			// right now; keep it visible instead of silently dropping it.
			session.Add(&types.TreeNode{Path: abs, IsDir: true, AccessError: true})
			s.sendError(fmt.Errorf("root %s: %w", abs, types.ErrDirTimeout))
			continue
		}

		session.MarkVisited(canonical)
		session.Add(&types.TreeNode{Path: abs, IsDir: true})

		if err := s.walkDir(session, abs, stop); err != nil {
			return err
		}
	}
	return nil
}

// walkDir enumerates one directory and recurses into its local
// subdirectories. Returns types.ErrCancelled on stop, nil otherwise.
func (s *Scanner) walkDir(session *Session, dir string, stop func() bool) error {
	if stopped(stop) {
		return types.ErrCancelled
	}

	s.progress("Scanning", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.sendError(fmt.Errorf("list %s: %w", dir, ioError(err)))
		return nil
	}
	// os.ReadDir returns entries sorted by filename, which gives the
	// deterministic insertion order the snapshot relies on.

	dirInfo, err := os.Stat(dir)
	if err != nil {
		s.sendError(fmt.Errorf("stat %s: %w", dir, ioError(err)))
		return nil
	}

	for _, entry := range entries {
		if stopped(stop) {
			return types.ErrCancelled
		}

		path := filepath.Join(dir, entry.Name())

		if s.matcher.Matches(path) {
			continue
		}

		// Follows symlinks: an entry pointing at a directory is treated
		// as that directory, like the rest of the pipeline does.
		info, err := os.Stat(path)
		if err != nil {
			s.sendError(fmt.Errorf("stat %s: %w", path, ioError(err)))
			continue
		}

		// Self-referential mount guard: an entry that is the same
		// filesystem object as its parent would recurse forever.
		if os.SameFile(dirInfo, info) {
			continue
		}

		canonical := canonicalPath(path)
		isDir := info.IsDir()

		if isDir && session.Visited(canonical) {
			// Cycle or alias (symlink back into an enumerated subtree).
			continue
		}

		node := &types.TreeNode{Path: path, IsDir: isDir}

		if isDir {
			session.MarkVisited(canonical)
			if s.classifier.IsProblematic(path) {
				// Enumerate as a single warning node, not expanded, to
				// bound worst-case latency.
				node.AccessError = true
				session.Add(node)
				s.sendError(fmt.Errorf("not expanding problematic directory %s", path))
				continue
			}
			session.Add(node)
			if err := s.walkDir(session, path, stop); err != nil {
				return err
			}
			continue
		}

		session.Add(node)
		session.stats.bytes += uint64(info.Size())
	}
	return nil
}

// canonicalPath resolves symlinks for deduplication. When resolution
// fails (dangling link, disappearing entry) the absolute path itself is
// the best available key.
func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

func (s *Scanner) progress(operation, detail string) {
	if s.report != nil {
		s.report(operation, detail)
	}
}

// ioError maps a filesystem error onto the shared error taxonomy so
// consumers can branch on category instead of parsing messages.
func ioError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", types.ErrAccessDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", types.ErrNotFound, err)
	default:
		return err
	}
}

// sendError reports a non-fatal error without ever blocking traversal.
func (s *Scanner) sendError(err error) {
	if s.errCh == nil {
		return
	}
	select {
	case s.errCh <- err:
	default:
	}
}

func stopped(stop func() bool) bool {
	return stop != nil && stop()
}
