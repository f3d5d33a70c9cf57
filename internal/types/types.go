// Package types provides shared types used across the treesnap codebase.
package types

import (
	"cmp"
	"errors"
	"slices"
	"strings"
)

// TreeNode is one entry in a scanned tree.
//
// Path is absolute and OS-native. Checked carries the operator's selection
// state and survives save/load cycles via the profile's folder_checks map.
type TreeNode struct {
	Path    string
	IsDir   bool
	Checked bool

	// AccessError marks a placeholder node for a root that could not be
	// probed, and warning nodes for problematic subdirectories that were
	// deliberately not expanded.
	AccessError bool
}

// NodeMap is the per-generation mapping of absolute path to node.
// A node is present iff it was successfully enumerated and not
// ignore-matched.
type NodeMap map[string]*TreeNode

// Ordered returns nodes in display order: directories first, then files,
// each group sorted lexicographically by path.
func (m NodeMap) Ordered() []*TreeNode {
	dirs := make([]*TreeNode, 0, len(m))
	files := make([]*TreeNode, 0, len(m))
	for _, n := range m {
		if n.IsDir {
			dirs = append(dirs, n)
		} else {
			files = append(files, n)
		}
	}
	byPath := func(n *TreeNode) string { return n.Path }
	return append(NewSorted(dirs, byPath).Items(), NewSorted(files, byPath).Items()...)
}

// Outcome is the terminal result of one scan attempt.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeSkipped
	OutcomeTimedOut
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ParseOutcome converts a stored outcome string back to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range []Outcome{OutcomeCompleted, OutcomeCancelled, OutcomeSkipped, OutcomeTimedOut, OutcomeErrored} {
		if o.String() == s {
			return o, true
		}
	}
	return OutcomeErrored, false
}

// Error taxonomy shared between the scanner, probe and loader.
var (
	ErrAccessDenied  = errors.New("access denied")
	ErrNotFound      = errors.New("not found")
	ErrDirTimeout    = errors.New("directory access timed out")
	ErrScanTimeout   = errors.New("scan timed out")
	ErrCancelled     = errors.New("cancelled by operator")
	ErrConfiguration = errors.New("malformed configuration")
)

// NormalizePath converts OS-native separators to forward slashes for
// pattern matching. Paths are matched, never opened, in this form.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// Sorted is an ordered collection that maintains sort order by a key function.
// T is the element type, K is the comparable key type.
// Once constructed, items are guaranteed to be sorted by key.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for ordering.
// Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// First returns the first item (smallest key), or zero value if empty.
func (s Sorted[T, K]) First() T {
	if len(s.items) == 0 {
		var zero T
		return zero
	}
	return s.items[0]
}

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }
