// Package history keeps a bounded ledger of condensed prompt identifiers so
// consecutive runs do not repeat topics. The ledger is a small JSON file:
// read once at session start, written once at session end via atomic replace.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MaxEntries bounds the ledger. Oldest entries are evicted FIFO.
const MaxEntries = 32

// Entry records one condensed prompt and when it was used.
type Entry struct {
	CondensedPrompt string    `json:"condensed_prompt"`
	UsedAt          time.Time `json:"used_at"`
}

// Store is the on-disk prompt history ledger.
type Store struct {
	path    string
	entries []Entry
}

// Open loads the ledger at path, creating an empty one if the file is absent.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		return s, s.Save()
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	s.clamp()
	return s, nil
}

// Entries returns the ledger oldest-first.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Condensed returns just the condensed identifiers, oldest-first.
func (s *Store) Condensed() []string {
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.CondensedPrompt)
	}
	return out
}

// Contains reports whether the condensed prompt is already in the ledger.
func (s *Store) Contains(condensed string) bool {
	for _, e := range s.entries {
		if e.CondensedPrompt == condensed {
			return true
		}
	}
	return false
}

// Touch records a condensed prompt as used now. A prompt already present is
// moved to the tail rather than duplicated; otherwise it is appended and the
// oldest entry evicted once the ledger exceeds MaxEntries.
func (s *Store) Touch(condensed string) {
	for i, e := range s.entries {
		if e.CondensedPrompt == condensed {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.entries = append(s.entries, Entry{CondensedPrompt: condensed, UsedAt: time.Now()})
	s.clamp()
}

// Len returns the number of ledger entries.
func (s *Store) Len() int { return len(s.entries) }

// Save writes the ledger with an atomic replace: no concurrent sessions are
// assumed, so a tmp-file rename is the only durability measure needed.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if s.entries == nil {
		data = []byte("[]")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *Store) clamp() {
	if len(s.entries) > MaxEntries {
		s.entries = s.entries[len(s.entries)-MaxEntries:]
	}
}
