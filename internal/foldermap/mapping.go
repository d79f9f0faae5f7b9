// Package foldermap implements the Folder Mapper: a
// persisted list of named local/remote folder pairs that can be uploaded,
// previewed, and kept incrementally in sync via the Transfer Scheduler.
package foldermap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePerms restricts the mapping document to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the containing directory.
const DirPerms = 0o700

// Mapping is one named local/remote folder pair.
type Mapping struct {
	Name    string `json:"name"`
	Local   string `json:"local"`
	Remote  string `json:"remote"`
	Enabled bool   `json:"enabled"`
}

// ErrNotFound is returned by operations naming an unknown mapping.
var ErrNotFound = fmt.Errorf("foldermap: mapping not found")

// ErrDuplicateName is returned by Add when the name is already in use.
var ErrDuplicateName = fmt.Errorf("foldermap: mapping name already exists")

// document is the on-disk JSON shape.
type document struct {
	Mappings []Mapping `json:"mappings"`
}

// Store persists one account's mappings to a JSON document under the
// config directory, guarded by a single mutex.
type Store struct {
	mu       sync.Mutex
	path     string
	mappings []Mapping
}

// New creates a Store backed by path. Callers must call Load before using
// an existing document, or Save to create one.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the mapping document from disk, replacing in-memory state.
// A missing file is not an error; the store starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mappings = nil
		return nil
	}

	if err != nil {
		return fmt.Errorf("foldermap: reading %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("foldermap: decoding %s: %w", s.path, err)
	}

	s.mappings = doc.Mappings

	return nil
}

// Save atomically writes the current mapping list to disk
// (write-to-temp + rename, matching the credential/token-file convention).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	doc := document{Mappings: s.mappings}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("foldermap: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("foldermap: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".foldermap-*.tmp")
	if err != nil {
		return fmt.Errorf("foldermap: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("foldermap: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("foldermap: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("foldermap: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("foldermap: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("foldermap: renaming: %w", err)
	}

	success = true

	return nil
}

// All returns a snapshot of every mapping.
func (s *Store) All() []Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]Mapping, len(s.mappings))
	copy(cp, s.mappings)

	return cp
}

// Get returns the mapping with the given name.
func (s *Store) Get(name string) (Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.Name == name {
			return m, true
		}
	}

	return Mapping{}, false
}

// Add appends a new, enabled mapping. Returns ErrDuplicateName if name is
// already in use.
func (s *Store) Add(name, local, remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.Name == name {
			return ErrDuplicateName
		}
	}

	s.mappings = append(s.mappings, Mapping{Name: name, Local: local, Remote: remote, Enabled: true})

	return s.saveLocked()
}

// Remove deletes the mapping with the given name.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.mappings {
		if m.Name == name {
			s.mappings = append(s.mappings[:i], s.mappings[i+1:]...)
			return s.saveLocked()
		}
	}

	return ErrNotFound
}

// Update changes local/remote for an existing mapping.
func (s *Store) Update(name, local, remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.mappings {
		if m.Name == name {
			s.mappings[i].Local = local
			s.mappings[i].Remote = remote

			return s.saveLocked()
		}
	}

	return ErrNotFound
}

// SetEnabled toggles whether a mapping participates in upload_all.
func (s *Store) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.mappings {
		if m.Name == name {
			s.mappings[i].Enabled = enabled
			return s.saveLocked()
		}
	}

	return ErrNotFound
}
