package smartsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FilePerms restricts the profile document to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the containing directory.
const DirPerms = 0o700

// ErrProfileNotFound is returned by operations naming an unknown profile.
var ErrProfileNotFound = errors.New("smartsync: profile not found")

type profileDocument struct {
	Profiles []Profile `json:"profiles"`
}

// ProfileStore persists the profile list as a JSON document, following
// the same atomic write-to-temp-then-rename convention used by the
// credential and token-file stores.
type ProfileStore struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]Profile
}

// NewProfileStore creates a ProfileStore backed by path.
func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path, profiles: make(map[string]Profile)}
}

// Load reads the profile document from disk. A missing file is not an
// error; the store starts empty.
func (s *ProfileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.profiles = make(map[string]Profile)
		return nil
	}

	if err != nil {
		return fmt.Errorf("smartsync: reading %s: %w", s.path, err)
	}

	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("smartsync: decoding %s: %w", s.path, err)
	}

	s.profiles = make(map[string]Profile, len(doc.Profiles))
	for _, p := range doc.Profiles {
		s.profiles[p.ID] = p
	}

	return nil
}

func (s *ProfileStore) saveLocked() error {
	doc := profileDocument{Profiles: make([]Profile, 0, len(s.profiles))}
	for _, p := range s.profiles {
		doc.Profiles = append(doc.Profiles, p)
	}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("smartsync: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("smartsync: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*.tmp")
	if err != nil {
		return fmt.Errorf("smartsync: creating temp file: %w", err)
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
		return fmt.Errorf("smartsync: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("smartsync: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("smartsync: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("smartsync: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("smartsync: renaming: %w", err)
	}

	success = true

	return nil
}

// Create adds a new profile, generating its id, and persists the store.
func (s *ProfileStore) Create(p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.NewString()
	s.profiles[p.ID] = p

	if err := s.saveLocked(); err != nil {
		delete(s.profiles, p.ID)
		return Profile{}, err
	}

	return p, nil
}

// Update replaces an existing profile in place.
func (s *ProfileStore) Update(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; !ok {
		return ErrProfileNotFound
	}

	s.profiles[p.ID] = p

	return s.saveLocked()
}

// Remove deletes a profile by id.
func (s *ProfileStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrProfileNotFound
	}

	delete(s.profiles, id)

	return s.saveLocked()
}

// Get returns the profile with the given id.
func (s *ProfileStore) Get(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]

	return p, ok
}

// All returns every profile, in no particular order.
func (s *ProfileStore) All() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}

	return out
}
