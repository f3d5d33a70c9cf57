// Package fallback picks the next profile to try after a scan failure.
package fallback

import (
	"github.com/mgrachev/treesnap/internal/pathclass"
	"github.com/mgrachev/treesnap/internal/profile"
)

// Selector chooses fallback profiles. Deterministic and total: Choose
// always returns a usable profile, never an error.
type Selector struct {
	store      *profile.Store
	classifier *pathclass.Classifier
}

// New creates a Selector over the profile store.
func New(store *profile.Store, classifier *pathclass.Classifier) *Selector {
	return &Selector{store: store, classifier: classifier}
}

// Choose returns the first candidate profile whose root folders are all
// local/fast, scanning in preference order with the default profile
// first and the failed profile excluded. When no candidate qualifies it
// returns the default profile, which is guaranteed loadable: a missing
// default file just yields the empty initial state.
func (s *Selector) Choose(excluding string) *profile.Profile {
	for _, name := range s.store.List() {
		if name == excluding {
			continue
		}

		p, err := s.store.Load(name)
		if err != nil {
			continue
		}
		if s.classifier.AllLocal(p.RootFolders) {
			return p
		}
	}

	// Last resort. The default may itself carry problematic roots (or be
	// the excluded profile); the minimal empty state is still safe.
	if excluding != profile.DefaultName {
		if p, err := s.store.Load(profile.DefaultName); err == nil && s.classifier.AllLocal(p.RootFolders) {
			return p
		}
	}
	return profile.Minimal()
}
