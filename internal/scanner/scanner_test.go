//go:build unix

package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mgrachev/treesnap/internal/ignore"
	"github.com/mgrachev/treesnap/internal/pathclass"
	"github.com/mgrachev/treesnap/internal/probe"
	"github.com/mgrachev/treesnap/internal/types"
)

func newTestScanner(patterns []string, filterSystem bool) *Scanner {
	classifier := pathclass.New()
	return New(
		ignore.New(patterns, filterSystem),
		probe.New(classifier, time.Second),
		classifier,
		nil,
		nil,
	)
}

func buildTree(t *testing.T, s *Scanner, roots ...string) *Session {
	t.Helper()
	session := NewSession()
	if err := s.BuildTree(session, roots, nil); err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return session
}

func createFile(t *testing.T, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIgnorePatternsPruneSubtrees(t *testing.T) {
	proj := filepath.Join(t.TempDir(), "proj")
	createFile(t, filepath.Join(proj, ".git", "config"), 10)
	createFile(t, filepath.Join(proj, "src", "a.py"), 10)
	createFile(t, filepath.Join(proj, "src", "a.py~"), 10)

	s := newTestScanner([]string{"*/.git/*", "*~"}, false)
	session := buildTree(t, s, proj)

	want := []string{proj, filepath.Join(proj, "src"), filepath.Join(proj, "src", "a.py")}
	if len(session.Nodes) != len(want) {
		t.Errorf("expected %d nodes, got %d: %v", len(want), len(session.Nodes), session.Nodes.Ordered())
	}
	for _, path := range want {
		if _, ok := session.Nodes[path]; !ok {
			t.Errorf("missing node %s", path)
		}
	}
	// No descendant of an ignored directory may appear.
	for path := range session.Nodes {
		if filepath.Base(filepath.Dir(path)) == ".git" {
			t.Errorf("node under ignored directory leaked: %s", path)
		}
	}
}

func TestIdempotentOnUnchangedTree(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a", "one.txt"), 5)
	createFile(t, filepath.Join(root, "b", "two.txt"), 5)

	s := newTestScanner(nil, false)
	first := buildTree(t, s, root)
	second := buildTree(t, s, root)

	firstOrder := first.Nodes.Ordered()
	secondOrder := second.Nodes.Ordered()
	if len(firstOrder) != len(secondOrder) {
		t.Fatalf("node counts differ: %d vs %d", len(firstOrder), len(secondOrder))
	}
	for i := range firstOrder {
		if firstOrder[i].Path != secondOrder[i].Path || firstOrder[i].IsDir != secondOrder[i].IsDir {
			t.Errorf("position %d differs: %+v vs %+v", i, firstOrder[i], secondOrder[i])
		}
	}
	if first.Generation == second.Generation {
		t.Error("expected each attempt to get its own generation id")
	}
}

func TestSymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	createFile(t, filepath.Join(sub, "file.txt"), 5)
	if err := os.Symlink(root, filepath.Join(sub, "loop")); err != nil {
		t.Fatal(err)
	}

	s := newTestScanner(nil, false)
	session := NewSession()
	done := make(chan error, 1)
	go func() { done <- s.BuildTree(session, []string{root}, nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BuildTree: %v", err)
		}
		// The alias resolves to the already-visited root, so it must not
		// appear and the subtree must not be duplicated.
		if _, ok := session.Nodes[filepath.Join(sub, "loop")]; ok {
			t.Error("symlink back to ancestor should be skipped")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cyclic tree did not terminate")
	}
}

func TestSymlinkToParentSkipped(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "file.txt"), 5)
	if err := os.Symlink(root, filepath.Join(root, "self")); err != nil {
		t.Fatal(err)
	}

	s := newTestScanner(nil, false)
	session := buildTree(t, s, root)

	if _, ok := session.Nodes[filepath.Join(root, "self")]; ok {
		t.Error("self-referential entry should be skipped entirely")
	}
}

func TestOverlappingRootsDeduplicated(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	createFile(t, filepath.Join(sub, "file.txt"), 5)

	s := newTestScanner(nil, false)
	session := buildTree(t, s, root, sub)

	// sub was covered by the first root; the second root is a no-op and
	// every path appears exactly once.
	if _, ok := session.Nodes[filepath.Join(sub, "file.txt")]; !ok {
		t.Error("expected file under overlapping root")
	}
	if len(session.Nodes) != 3 {
		t.Errorf("expected 3 nodes (root, sub, file), got %d", len(session.Nodes))
	}
}

func TestAbandonedWorkerOutlivesErrorDrain(t *testing.T) {
	root := t.TempDir()
	denied := filepath.Join(root, "denied")
	createFile(t, filepath.Join(denied, "f.txt"), 5)
	if err := os.Chmod(denied, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(denied, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	// Fill the buffer so every diagnostic the worker emits hits the
	// non-blocking drop path.
	errCh := make(chan error, 1)
	errCh <- errors.New("occupied")
	classifier := pathclass.New()
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, nil, errCh)

	// Park the worker on its first stop check, so the controller side can
	// finish (and stop draining) while the scan is still in flight.
	gate := make(chan struct{})
	stop := func() bool { <-gate; return false }

	session := NewSession()
	done := make(chan error, 1)
	go func() { done <- s.BuildTree(session, []string{root}, stop) }()

	// The controller walks away here. errCh stays open and undrained;
	// the released worker must still finish reporting without incident.
	close(gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BuildTree: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("abandoned worker did not finish")
	}
}

func TestDuplicateRootProbedOnce(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "f.txt"), 5)

	var rootChecks int
	classifier := pathclass.NewWithStat(func(path string) (os.FileInfo, error) {
		if path == root {
			rootChecks++
		}
		return os.Stat(path)
	})
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, nil, nil)
	session := buildTree(t, s, root, root)

	// The second occurrence is dropped by the visited-set check before
	// any accessibility work happens.
	if rootChecks != 1 {
		t.Errorf("expected exactly one accessibility check for the root, got %d", rootChecks)
	}
	if len(session.Nodes) != 2 {
		t.Errorf("expected 2 nodes (root, file), got %d", len(session.Nodes))
	}
}

func TestInaccessibleRootGetsPlaceholder(t *testing.T) {
	// Everything classifies as problematic and the probe never succeeds,
	// standing in for an unreachable UNC share.
	classifier := pathclass.NewWithStat(func(string) (os.FileInfo, error) {
		return nil, errors.New("unreachable")
	})
	errCh := make(chan error, 10)
	s := New(ignore.New(nil, false), probe.New(classifier, 100*time.Millisecond), classifier, nil, errCh)

	missing := filepath.Join(t.TempDir(), "share")
	session := NewSession()

	start := time.Now()
	if err := s.BuildTree(session, []string{missing}, nil); err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2500*time.Millisecond {
		t.Errorf("placeholder took %v, expected bounded time", elapsed)
	}

	node, ok := session.Nodes[missing]
	if !ok || !node.AccessError {
		t.Fatalf("expected access-error placeholder node, got %+v", node)
	}
	select {
	case <-errCh:
	default:
		t.Error("expected a diagnostic on errCh")
	}
}

func TestProblematicSubdirectoryNotExpanded(t *testing.T) {
	root := t.TempDir()
	slow := filepath.Join(root, "mount")
	createFile(t, filepath.Join(slow, "inner.txt"), 5)

	// Flag only the mount subdirectory as problematic.
	classifier := pathclass.NewWithStat(func(path string) (os.FileInfo, error) {
		if path == slow {
			return nil, errors.New("slow mount")
		}
		return os.Stat(path)
	})
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, nil, nil)
	session := buildTree(t, s, root)

	node, ok := session.Nodes[slow]
	if !ok {
		t.Fatal("expected warning node for problematic subdirectory")
	}
	if !node.AccessError || !node.IsDir {
		t.Errorf("expected unexpanded warning directory node, got %+v", node)
	}
	if _, ok := session.Nodes[filepath.Join(slow, "inner.txt")]; ok {
		t.Error("problematic subdirectory must not be expanded")
	}
}

func TestDeniedDirectoryReportsAccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	denied := filepath.Join(root, "denied")
	createFile(t, filepath.Join(denied, "f.txt"), 5)
	if err := os.Chmod(denied, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(denied, 0o755) })

	errCh := make(chan error, 10)
	classifier := pathclass.New()
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, nil, errCh)
	buildTree(t, s, root)

	select {
	case err := <-errCh:
		if !errors.Is(err, types.ErrAccessDenied) {
			t.Errorf("expected ErrAccessDenied, got %v", err)
		}
	default:
		t.Fatal("expected a diagnostic for the unreadable directory")
	}
}

func TestDanglingSymlinkReportsNotFound(t *testing.T) {
	root := t.TempDir()
	if err := os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 10)
	classifier := pathclass.New()
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, nil, errCh)
	session := buildTree(t, s, root)

	if _, ok := session.Nodes[filepath.Join(root, "dangling")]; ok {
		t.Error("dangling symlink should not produce a node")
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	default:
		t.Fatal("expected a diagnostic for the dangling symlink")
	}
}

func TestStopPredicateCancelsScan(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "b", "c"} {
		createFile(t, filepath.Join(root, d, "f.txt"), 5)
	}

	s := newTestScanner(nil, false)
	session := NewSession()
	err := s.BuildTree(session, []string{root}, func() bool { return true })
	if !errors.Is(err, types.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(session.Nodes) != 0 {
		t.Errorf("cancelled before any work, got %d nodes", len(session.Nodes))
	}
}

func TestHiddenAndSystemFolderFiltering(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "src", "main.go"), 5)
	createFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), 5)
	createFile(t, filepath.Join(root, ".hidden"), 5)

	filtered := buildTree(t, newTestScanner(nil, true), root)
	if _, ok := filtered.Nodes[filepath.Join(root, "node_modules")]; ok {
		t.Error("expected node_modules to be filtered")
	}
	if _, ok := filtered.Nodes[filepath.Join(root, ".hidden")]; ok {
		t.Error("expected hidden file to be filtered")
	}

	unfiltered := buildTree(t, newTestScanner(nil, false), root)
	if _, ok := unfiltered.Nodes[filepath.Join(root, "node_modules")]; !ok {
		t.Error("expected node_modules present with filtering off")
	}
}

func TestProgressReported(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "sub", "f.txt"), 5)

	var calls int
	report := func(operation, detail string) { calls++ }
	classifier := pathclass.New()
	s := New(ignore.New(nil, false), probe.New(classifier, time.Second), classifier, report, nil)
	buildTree(t, s, root)

	if calls < 2 {
		t.Errorf("expected root and per-directory progress callbacks, got %d", calls)
	}
}
