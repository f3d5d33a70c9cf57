// Package history keeps a per-profile journal of scan attempts.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mgrachev/treesnap/internal/types"
)

// Entry records one scan attempt.
type Entry struct {
	Generation string        `json:"generation"`
	Outcome    string        `json:"outcome"`
	NodeCount  int           `json:"node_count"`
	Duration   time.Duration `json:"duration"`
	When       time.Time     `json:"when"`
}

// Journal is a BoltDB-backed scan history. One bucket per profile, keyed
// by attempt timestamp, so reads come back in chronological order.
type Journal struct {
	db      *bolt.DB
	enabled bool
}

// Open opens (or creates) the journal at path. Returns a disabled journal
// if path is empty; all methods are then no-ops.
func Open(path string) (*Journal, error) {
	if path == "" {
		return &Journal{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history (locked by another instance?): %w", err)
	}
	return &Journal{db: db, enabled: true}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if !j.enabled {
		return nil
	}
	return j.db.Close()
}

// Append records an attempt under the profile's bucket.
func (j *Journal) Append(profileName string, outcome types.Outcome, generation string, nodeCount int, duration time.Duration) error {
	if !j.enabled {
		return nil
	}

	entry := Entry{
		Generation: generation,
		Outcome:    outcome.String(),
		NodeCount:  nodeCount,
		Duration:   duration,
		When:       time.Now(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(entry.When.UnixNano()))

	err = j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(profileName))
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to n newest entries for a profile, newest first.
// A profile with no history yields an empty slice.
func (j *Journal) Recent(profileName string, n int) ([]Entry, error) {
	if !j.enabled || n <= 0 {
		return nil, nil
	}

	var entries []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(profileName))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue // tolerate old or corrupt rows
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}
