package smartsync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStoreCreateSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")

	s := NewProfileStore(path)
	require.NoError(t, s.Load())

	created, err := s.Create(Profile{Name: "docs", LocalPath: "/home/docs", RemotePath: "/Docs"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	reloaded := NewProfileStore(path)
	require.NoError(t, reloaded.Load())

	got, ok := reloaded.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "docs", got.Name)
	assert.Equal(t, "/home/docs", got.LocalPath)
}

func TestProfileStoreUpdateUnknownFails(t *testing.T) {
	s := NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, s.Load())

	err := s.Update(Profile{ID: "missing"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileStoreRemoveUnknownFails(t *testing.T) {
	s := NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, s.Load())

	err := s.Remove("missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s := NewProfileStore(path)
	require.NoError(t, s.Load())

	created, err := s.Create(Profile{Name: "docs"})
	require.NoError(t, err)

	created.Name = "renamed"
	require.NoError(t, s.Update(created))

	reloaded := NewProfileStore(path)
	require.NoError(t, reloaded.Load())

	got, ok := reloaded.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
}

func TestProfileStoreRemovePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s := NewProfileStore(path)
	require.NoError(t, s.Load())

	created, err := s.Create(Profile{Name: "docs"})
	require.NoError(t, err)

	require.NoError(t, s.Remove(created.ID))

	reloaded := NewProfileStore(path)
	require.NoError(t, reloaded.Load())
	assert.Empty(t, reloaded.All())
}

func TestProfileStoreLoadMissingFileStartsEmpty(t *testing.T) {
	s := NewProfileStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, s.Load())
	assert.Empty(t, s.All())
}
