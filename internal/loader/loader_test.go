package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrachev/treesnap/internal/log"
	"github.com/mgrachev/treesnap/internal/profile"
	"github.com/mgrachev/treesnap/internal/types"
	"github.com/mgrachev/treesnap/internal/watchdog"
)

func newTestLoader(t *testing.T) (*Loader, *profile.Store) {
	t.Helper()
	store, err := profile.NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)

	l := New(Config{
		Store:  store,
		Logger: log.NewWithWriters(false, false, nil, nil),
	})
	return l, store
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLoadLocalProfileCompletes(t *testing.T) {
	l, store := newTestLoader(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.py"))

	p := profile.New("work")
	p.RootFolders = []string{root}
	require.NoError(t, store.Save(p))

	res := l.Load("work", nil)
	require.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.False(t, res.UsedFallback)
	assert.Contains(t, res.Session.Nodes, filepath.Join(root, "src", "a.py"))
}

func TestLoadRestoresChecksExactlyOnce(t *testing.T) {
	l, store := newTestLoader(t)

	root := t.TempDir()
	kept := filepath.Join(root, "kept.txt")
	writeFile(t, kept)

	p := profile.New("work")
	p.RootFolders = []string{root}
	p.FolderChecks[kept] = true
	p.FolderChecks[filepath.Join(root, "deleted.txt")] = true // stale
	require.NoError(t, store.Save(p))

	res := l.Load("work", nil)
	require.Equal(t, types.OutcomeCompleted, res.Outcome)

	require.Contains(t, res.Session.Nodes, kept)
	assert.True(t, res.Session.Nodes[kept].Checked)
	// Paths absent after the rescan are implicitly dropped.
	assert.Equal(t, map[string]bool{kept: true}, res.Profile.FolderChecks)
}

func TestLoadMissingProfileYieldsEmptyCompleted(t *testing.T) {
	l, _ := newTestLoader(t)

	res := l.Load("never-saved", nil)
	assert.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.Empty(t, res.Session.Nodes)
}

func TestLoadMalformedProfileFallsBackToDefaults(t *testing.T) {
	l, store := newTestLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad.yaml"), []byte("root_folders: [unclosed"), 0o644))

	res := l.Load("bad", nil)
	assert.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.Empty(t, res.Profile.RootFolders)
}

func TestCancelYieldsMinimalState(t *testing.T) {
	l, store := newTestLoader(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.txt"))
	p := profile.New("work")
	p.RootFolders = []string{root}
	require.NoError(t, store.Save(p))

	token := watchdog.NewToken()
	token.RequestCancel()

	res := l.Load("work", token)
	assert.Equal(t, types.OutcomeCancelled, res.Outcome)
	assert.Empty(t, res.Session.Nodes, "cancelled attempt must not commit partial data")
	assert.Empty(t, res.Profile.RootFolders)
}

func TestSkipSelectsFallbackProfile(t *testing.T) {
	l, store := newTestLoader(t)

	// Problematic profile forces the polling watchdog path.
	p := profile.New("nas")
	p.RootFolders = []string{`\\server\share`}
	require.NoError(t, store.Save(p))

	// A safe default for the selector to land on.
	safeRoot := t.TempDir()
	writeFile(t, filepath.Join(safeRoot, "ok.txt"))
	def := profile.New(profile.DefaultName)
	def.RootFolders = []string{safeRoot}
	require.NoError(t, store.Save(def))

	token := watchdog.NewToken()
	token.RequestSkip()

	res := l.Load("nas", token)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, profile.DefaultName, res.Profile.Name)
	assert.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.Contains(t, res.Session.Nodes, filepath.Join(safeRoot, "ok.txt"))
}

func TestUnreachableRootStillCompletesWithPlaceholder(t *testing.T) {
	l, store := newTestLoader(t)

	missing := filepath.Join(t.TempDir(), "gone")
	p := profile.New("half")
	p.RootFolders = []string{missing}
	p.EnableTimeouts = false // direct runner; probe still bounds the root check
	require.NoError(t, store.Save(p))

	res := l.Load("half", nil)
	require.Equal(t, types.OutcomeCompleted, res.Outcome)
	require.Contains(t, res.Session.Nodes, missing)
	assert.True(t, res.Session.Nodes[missing].AccessError)
}
