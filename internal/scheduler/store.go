package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePerms restricts the task document to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the containing directory.
const DirPerms = 0o700

// ErrTaskNotFound is returned by operations naming an unknown task id.
var ErrTaskNotFound = errors.New("scheduler: task not found")

type taskDocument struct {
	NextID uint64 `json:"next_id"`
	Tasks  []Task `json:"tasks"`
}

// Store persists the task list as a JSON document, preserving each
// task's monotonic integer id across restarts,
// using the same atomic write-to-temp-then-rename convention as the
// module's other JSON-backed stores.
type Store struct {
	mu     sync.Mutex
	path   string
	nextID uint64
	tasks  map[uint64]Task
}

// NewStore creates a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, nextID: 1, tasks: make(map[uint64]Task)}
}

// Load reads the task document from disk. A missing file is not an
// error; the store starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.tasks = make(map[uint64]Task)
		s.nextID = 1

		return nil
	}

	if err != nil {
		return fmt.Errorf("scheduler: reading %s: %w", s.path, err)
	}

	var doc taskDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("scheduler: decoding %s: %w", s.path, err)
	}

	s.tasks = make(map[uint64]Task, len(doc.Tasks))
	for _, t := range doc.Tasks {
		s.tasks[t.ID] = t
	}

	s.nextID = doc.NextID
	if s.nextID == 0 {
		s.nextID = 1
	}

	return nil
}

func (s *Store) saveLocked() error {
	doc := taskDocument{NextID: s.nextID, Tasks: make([]Task, 0, len(s.tasks))}
	for _, t := range s.tasks {
		doc.Tasks = append(doc.Tasks, t)
	}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("scheduler: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("scheduler: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.tmp")
	if err != nil {
		return fmt.Errorf("scheduler: creating temp file: %w", err)
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
		return fmt.Errorf("scheduler: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("scheduler: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("scheduler: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scheduler: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("scheduler: renaming: %w", err)
	}

	success = true

	return nil
}

// Create assigns the next monotonic id to t and persists the store.
func (s *Store) Create(t Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextID
	s.nextID++
	s.tasks[t.ID] = t

	if err := s.saveLocked(); err != nil {
		delete(s.tasks, t.ID)
		s.nextID--

		return Task{}, err
	}

	return t, nil
}

// Update replaces an existing task in place and persists the store.
func (s *Store) Update(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; !ok {
		return ErrTaskNotFound
	}

	s.tasks[t.ID] = t

	return s.saveLocked()
}

// Remove deletes a task by id and persists the store.
func (s *Store) Remove(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}

	delete(s.tasks, id)

	return s.saveLocked()
}

// Get returns the task with the given id.
func (s *Store) Get(id uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]

	return t, ok
}

// All returns every task, in no particular order.
func (s *Store) All() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}

	return out
}
