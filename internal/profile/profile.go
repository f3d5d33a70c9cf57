// Package profile manages named configuration bundles: the root folders,
// ignore patterns and selection state that make up one operator
// workspace.
//
// Exactly one profile is active at a time. Bundles are persisted as YAML
// files in a store directory; writes are atomic (temp file + rename) and
// guarded by a file lock so concurrent instances cannot interleave
// partial profiles.
package profile

// DefaultName is the profile that always exists and always loads: the
// unconditional safety net of fallback selection.
const DefaultName = "default"

// initialIgnorePatterns seeds a newly created profile. Operators edit the
// list from there.
var initialIgnorePatterns = []string{
	"*/__pycache__/*",
	"*/.pytest_cache/*",
	"*/.mypy_cache/*",
	"*/node_modules/*",
	"*/.npm/*",
	"*/.gradle/*",
	"*/.cargo/*",
	"*/target/*",
	"*.pyc",
	"*~",
}

// Profile is a named configuration bundle. The tree shape produced by a
// scan is never persisted; only the path → checked booleans in
// FolderChecks survive a save/load cycle.
type Profile struct {
	Name string `yaml:"-"`

	RootFolders         []string        `yaml:"root_folders"`
	IgnorePatterns      []string        `yaml:"ignore_patterns"`
	FilterSystemFolders bool            `yaml:"filter_system_folders"`
	FolderChecks        map[string]bool `yaml:"folder_checks"`
	EnableTimeouts      bool            `yaml:"enable_timeouts"`
}

// New returns an empty profile with default toggles and the initial
// ignore pattern set.
func New(name string) *Profile {
	return &Profile{
		Name:                name,
		IgnorePatterns:      append([]string(nil), initialIgnorePatterns...),
		FilterSystemFolders: true,
		FolderChecks:        make(map[string]bool),
		EnableTimeouts:      true,
	}
}

// Minimal returns the guaranteed-loadable empty state used when every
// fallback option is exhausted: no roots, defaults everywhere.
func Minimal() *Profile {
	return New(DefaultName)
}
