package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrachev/treesnap/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)
	return s
}

func TestLoadMissingProfileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "work", p.Name)
	assert.True(t, p.FilterSystemFolders)
	assert.True(t, p.EnableTimeouts)
	assert.NotEmpty(t, p.IgnorePatterns, "first launch seeds the initial ignore set")
	assert.Empty(t, p.RootFolders)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := New("work")
	p.RootFolders = []string{"/proj", "/data"}
	p.IgnorePatterns = []string{"*/.git/*", "*~"}
	p.FilterSystemFolders = false
	p.EnableTimeouts = false
	p.FolderChecks["/proj/src/a.py"] = true

	require.NoError(t, s.Save(p))

	loaded, err := s.Load("work")
	require.NoError(t, err)
	assert.Equal(t, p.RootFolders, loaded.RootFolders)
	assert.Equal(t, p.IgnorePatterns, loaded.IgnorePatterns)
	assert.False(t, loaded.FilterSystemFolders)
	assert.False(t, loaded.EnableTimeouts)
	assert.Equal(t, map[string]bool{"/proj/src/a.py": true}, loaded.FolderChecks)
}

func TestLoadMalformedProfileIsConfigurationError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.yaml"), []byte("root_folders: [unclosed"), 0o644))

	p, err := s.Load("broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	// The subsystem proceeds with a usable default state.
	require.NotNil(t, p)
	assert.Empty(t, p.RootFolders)
}

func TestListAlwaysRanksDefaultFirst(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(New("zeta")))
	require.NoError(t, s.Save(New("alpha")))

	assert.Equal(t, []string{DefaultName, "alpha", "zeta"}, s.List())
}

func TestDeleteRefusesDefault(t *testing.T) {
	s := newTestStore(t)
	require.Error(t, s.Delete(DefaultName))

	require.NoError(t, s.Save(New("scratch")))
	require.True(t, s.Exists("scratch"))
	require.NoError(t, s.Delete("scratch"))
	assert.False(t, s.Exists("scratch"))
}

func TestLastProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, DefaultName, s.Last())

	require.NoError(t, s.SetLast("work"))
	assert.Equal(t, "work", s.Last())
}
