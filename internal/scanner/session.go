package scanner

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/mgrachev/treesnap/internal/types"
)

// Session owns all mutable state of one scan generation: the node map and
// the visited set. A fresh Session is constructed per attempt and fully
// replaces the previous one on success; on cancellation or timeout it is
// simply discarded, so stale generations can never contaminate the
// committed tree.
type Session struct {
	// Generation identifies this scan attempt in logs and the history
	// journal.
	Generation string

	// Nodes is the path → node mapping produced by the scan.
	Nodes types.NodeMap

	visited map[string]struct{} // canonical (symlink-resolved) paths
	stats   stats
}

// NewSession creates an empty scan generation.
func NewSession() *Session {
	return &Session{
		Generation: uuid.NewString(),
		Nodes:      make(types.NodeMap),
		visited:    make(map[string]struct{}),
		stats:      stats{startTime: time.Now()},
	}
}

// Visited reports whether a canonical path was already enumerated in this
// generation.
func (s *Session) Visited(canonical string) bool {
	_, ok := s.visited[canonical]
	return ok
}

// MarkVisited records a canonical path. A directory is expanded at most
// once per generation even when reachable through several parents.
func (s *Session) MarkVisited(canonical string) {
	s.visited[canonical] = struct{}{}
}

// Add registers a node under its absolute path.
func (s *Session) Add(node *types.TreeNode) {
	s.Nodes[node.Path] = node
	if node.IsDir {
		s.stats.dirs++
	} else {
		s.stats.files++
	}
}

// Summary describes the generation for the final progress line.
func (s *Session) Summary() string {
	return fmt.Sprintf("Scanned %s directories, %s files (%s) in %.1fs",
		humanize.Comma(s.stats.dirs), humanize.Comma(s.stats.files),
		humanize.IBytes(s.stats.bytes),
		time.Since(s.stats.startTime).Seconds())
}

// stats tracks per-generation counters. The scan runs on a single worker,
// so plain integers suffice; the controller only reads them after the
// worker hands the session back.
type stats struct {
	dirs      int64
	files     int64
	bytes     uint64
	startTime time.Time
}
