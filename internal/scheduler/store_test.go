package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAssignsMonotonicIDs(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, s.Load())

	a, err := s.Create(Task{Name: "a"})
	require.NoError(t, err)
	b, err := s.Create(Task{Name: "b"})
	require.NoError(t, err)

	assert.Less(t, a.ID, b.ID)
}

func TestStoreIDsSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := NewStore(path)
	require.NoError(t, s.Load())

	created, err := s.Create(Task{Name: "a"})
	require.NoError(t, err)

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())

	next, err := reloaded.Create(Task{Name: "b"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID)

	got, ok := reloaded.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)
}

func TestStoreUpdateUnknownFails(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, s.Load())

	err := s.Update(Task{ID: 999})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreRemoveUnknownFails(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, s.Load())

	err := s.Remove(999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreLoadMissingFileStartsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, s.Load())
	assert.Empty(t, s.All())
}
