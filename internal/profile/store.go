package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/mgrachev/treesnap/internal/types"
)

const (
	profileExt   = ".yaml"
	lastFileName = "last_profile"
	lockFileName = ".lock"
)

// Store persists profiles under a single directory, one YAML file per
// profile.
type Store struct {
	dir  string
	lock *flock.Flock
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+profileExt)
}

// Load reads a profile by name.
//
// A missing file is not an error: it yields a freshly initialized profile
// (first launch of that name). A malformed file is a configuration error;
// callers surface it and proceed with defaults rather than refusing to
// start.
func (s *Store) Load(name string) (*Profile, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return New(name), nil
	}
	if err != nil {
		return New(name), fmt.Errorf("%w: read profile %s: %v", types.ErrConfiguration, name, err)
	}

	p := New(name)
	p.IgnorePatterns = nil
	if err := yaml.Unmarshal(data, p); err != nil {
		return New(name), fmt.Errorf("%w: parse profile %s: %v", types.ErrConfiguration, name, err)
	}
	if p.FolderChecks == nil {
		p.FolderChecks = make(map[string]bool)
	}
	return p, nil
}

// Save writes a profile atomically under the store lock.
func (s *Store) Save(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile has no name", types.ErrConfiguration)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", p.Name, err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock profile store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp := s.path(p.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Name, err)
	}
	if err := os.Rename(tmp, s.path(p.Name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace profile %s: %w", p.Name, err)
	}
	return nil
}

// List returns available profile names, sorted, with the default profile
// always present and ranked first.
func (s *Store) List() []string {
	names := []string{DefaultName}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return names
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), profileExt)
		if name != DefaultName {
			names = append(names, name)
		}
	}
	slices.Sort(names[1:])
	return names
}

// Delete removes a profile file. The default profile cannot be deleted.
func (s *Store) Delete(name string) error {
	if name == DefaultName {
		return fmt.Errorf("cannot delete the %s profile", DefaultName)
	}
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a profile file is present on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Last returns the most recently activated profile name, or the default
// when none was recorded.
func (s *Store) Last() string {
	data, err := os.ReadFile(filepath.Join(s.dir, lastFileName))
	if err != nil {
		return DefaultName
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return DefaultName
	}
	return name
}

// SetLast records the active profile name for the next start.
func (s *Store) SetLast(name string) error {
	path := filepath.Join(s.dir, lastFileName)
	if err := os.WriteFile(path, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("record last profile: %w", err)
	}
	return nil
}
