// Package poller picks up newly created entries under the active root
// folders without rebuilding the whole tree.
//
// The poller re-walks each root with the native recursive walk on a fixed
// cadence and adds any path not yet in the session, applying the same
// ignore and self-reference checks as the scanner. It is append-only:
// entries for deleted paths are not removed. It never uses the bounded
// access probe; polling is a best-effort incremental pass over roots that
// already scanned successfully.
package poller

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mgrachev/treesnap/internal/ignore"
	"github.com/mgrachev/treesnap/internal/scanner"
	"github.com/mgrachev/treesnap/internal/types"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 3 * time.Second

// Poller incrementally extends a scan session.
type Poller struct {
	roots    []string
	matcher  *ignore.Matcher
	session  *scanner.Session
	interval time.Duration
	onAdd    func(*types.TreeNode) // notification hook; may be nil
}

// New creates a Poller over the currently active roots and session. A
// zero or negative interval falls back to DefaultInterval.
func New(roots []string, matcher *ignore.Matcher, session *scanner.Session, interval time.Duration, onAdd func(*types.TreeNode)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		roots:    roots,
		matcher:  matcher,
		session:  session,
		interval: interval,
		onAdd:    onAdd,
	}
}

// Run polls on the configured cadence until ctx is done. The session must
// not be mutated by anyone else while Run is active; the poller is the
// sole mutator by construction.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce()
		}
	}
}

// PollOnce walks every root once and returns how many new nodes were
// added. Unreachable roots are skipped silently; a root disappearing is
// not the poller's problem to report.
func (p *Poller) PollOnce() int {
	added := 0
	for _, root := range p.roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		added += p.pollRoot(root)
	}
	return added
}

func (p *Poller) pollRoot(root string) int {
	added := 0
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil // transient listing errors never abort the poll
		}
		if path == root {
			return nil
		}

		if p.matcher.Matches(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if sameAsParent(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if _, known := p.session.Nodes[path]; known {
			return nil
		}

		canonical := path
		if resolved, rerr := filepath.EvalSymlinks(path); rerr == nil {
			canonical = resolved
		}
		if p.session.Visited(canonical) {
			// Alias of something already enumerated; do not descend into
			// a subtree the scanner covered under another name.
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		node := &types.TreeNode{Path: path, IsDir: entry.IsDir()}
		p.session.Add(node)
		if node.IsDir {
			p.session.MarkVisited(canonical)
		}
		added++
		if p.onAdd != nil {
			p.onAdd(node)
		}
		return nil
	})
	return added
}

// sameAsParent guards against self-referential mounts surfacing through
// the walk.
func sameAsParent(path string) bool {
	parentInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return true // cannot tell; skip to be safe
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return os.SameFile(parentInfo, info)
}
