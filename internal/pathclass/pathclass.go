// Package pathclass classifies paths as local/fast or potentially
// problematic (network shares, remote-protocol URLs, abnormally long or
// already unreachable paths).
//
// Classification is a cheap, per-path predicate: at most one stat call and
// never a directory listing. Anything flagged here is handled downstream
// with explicit timeouts by the access probe.
package pathclass

import (
	"os"
	"strings"
)

// maxPathLen is the length beyond which a path is assumed to be a deep
// network mount and treated as problematic.
const maxPathLen = 200

var remoteSchemes = []string{"ftp://", "sftp://", "ftps://"}

// Classifier decides whether a path is likely to be slow or unreachable.
//
// The zero value is not usable; create with New. The stat function is
// injectable so tests can simulate unreachable paths without real mounts.
type Classifier struct {
	stat func(string) (os.FileInfo, error)
}

// New creates a Classifier backed by os.Stat.
func New() *Classifier {
	return &Classifier{stat: os.Stat}
}

// NewWithStat creates a Classifier with a custom stat function.
func NewWithStat(stat func(string) (os.FileInfo, error)) *Classifier {
	return &Classifier{stat: stat}
}

// IsProblematic reports whether path should be treated as potentially
// slow or unreliable. Returns true for UNC/network prefixes, remote
// protocol schemes, paths longer than 200 characters, and paths whose
// existence check fails or is denied.
func (c *Classifier) IsProblematic(path string) bool {
	if strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//") {
		return true
	}

	lower := strings.ToLower(path)
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}

	if len(path) > maxPathLen {
		return true
	}

	// Unreachable paths are problematic by definition: either they are
	// gone, or the mount backing them is not answering.
	if _, err := c.stat(path); err != nil {
		return true
	}

	return false
}

// AllLocal reports whether every path in paths classifies as local/fast.
// An empty list is trivially local.
func (c *Classifier) AllLocal(paths []string) bool {
	for _, p := range paths {
		if c.IsProblematic(p) {
			return false
		}
	}
	return true
}
