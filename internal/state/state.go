// Package state persists reading positions between sessions, keyed by a
// hash of the document's leading bytes.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	fileName   = "positions.json"
	hashPrefix = 8192
)

// Entry is the saved position of one document.
type Entry struct {
	Name      string    `json:"name,omitempty"`
	Word      int       `json:"word"`
	Interval  int64     `json:"interval_ms,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a JSON file of entries guarded by a mutex.
type Store struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// Dir returns XDG_STATE_HOME/prr, or ~/.local/state/prr.
func Dir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "prr")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "prr")
}

// NewStore opens the store in Dir.
func NewStore() (*Store, error) {
	return Open(Dir())
}

// Open creates dir if needed and loads the positions file inside it. A
// corrupt file is ignored and overwritten on the next save.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &Store{
		path:    filepath.Join(dir, fileName),
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read state: %w", err)
	default:
		if json.Unmarshal(data, &s.entries) != nil {
			s.entries = make(map[string]Entry)
		}
	}
	return s, nil
}

// Path returns the positions file location.
func (s *Store) Path() string { return s.path }

// HashBytes identifies a document by the first 8KB of its content.
func HashBytes(data []byte) string {
	if len(data) > hashPrefix {
		data = data[:hashPrefix]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Get returns the entry for hash.
func (s *Store) Get(hash string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[hash]
	return e, ok
}

// GetPosition returns the saved word index for hash, or 0.
func (s *Store) GetPosition(hash string) int {
	e, _ := s.Get(hash)
	return e.Word
}

// SetPosition records word for hash and writes the file.
func (s *Store) SetPosition(hash, name string, word int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[hash]
	e.Name = name
	e.Word = word
	e.UpdatedAt = s.now().UTC()
	s.entries[hash] = e
	return s.saveLocked()
}

// GetInterval returns the saved tick interval for hash, or 0.
func (s *Store) GetInterval(hash string) time.Duration {
	e, _ := s.Get(hash)
	return time.Duration(e.Interval) * time.Millisecond
}

// SetInterval records the preferred tick interval for hash.
func (s *Store) SetInterval(hash string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[hash]
	e.Interval = d.Milliseconds()
	e.UpdatedAt = s.now().UTC()
	s.entries[hash] = e
	return s.saveLocked()
}

// Clear forgets hash.
func (s *Store) Clear(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[hash]; !ok {
		return nil
	}
	delete(s.entries, hash)
	return s.saveLocked()
}

// saveLocked writes through a temp file so a crash never leaves a torn file.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
