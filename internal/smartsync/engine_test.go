package smartsync

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
	"github.com/megacustom/core/internal/transfer"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *cloudclient.Fake, *ProfileStore) {
	t.Helper()

	client := cloudclient.NewFakeWithOS()
	sched := transfer.New(client, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go sched.Run(ctx)

	store := NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, store.Load())

	return New(store, client, sched, events.New(nil), nil), client, store
}

func TestStartSyncUploadsLocalOnlyFile(t *testing.T) {
	eng, client, store := newTestEngine(t)

	root := t.TempDir()
	writeLocalFile(t, root, "report.txt", []byte("quarterly"), time.Now())

	_, err := client.CreateFolder(context.Background(), "/Docs")
	require.NoError(t, err)

	p, err := store.Create(Profile{Name: "docs", LocalPath: root, RemotePath: "/Docs", Direction: Bidirectional})
	require.NoError(t, err)

	entry, err := eng.StartSync(context.Background(), p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, entry.Status)
	require.Equal(t, 1, entry.Uploaded)

	require.Eventually(t, func() bool {
		_, found, _ := client.NodeByPath(context.Background(), "/Docs/report.txt")
		return found
	}, time.Second, 5*time.Millisecond)
}

func TestStartSyncRejectsConcurrentRun(t *testing.T) {
	eng, _, store := newTestEngine(t)

	root := t.TempDir()
	p, err := store.Create(Profile{Name: "docs", LocalPath: root, RemotePath: "/Docs"})
	require.NoError(t, err)

	st := eng.stateFor(p.ID)
	st.mu.Lock()
	st.running = true
	st.mu.Unlock()

	_, err = eng.StartSync(context.Background(), p.ID, nil)
	require.ErrorIs(t, err, ErrAlreadySyncing)
}

func TestCancelStopsExecutionEarly(t *testing.T) {
	eng, client, store := newTestEngine(t)

	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeLocalFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("data"), time.Now())
	}

	_, err := client.CreateFolder(context.Background(), "/Docs")
	require.NoError(t, err)

	p, err := store.Create(Profile{Name: "docs", LocalPath: root, RemotePath: "/Docs"})
	require.NoError(t, err)

	onProgress := func(prog Progress) {
		if prog.ProcessedActions == 1 {
			eng.Cancel(p.ID)
		}
	}

	entry, err := eng.StartSync(context.Background(), p.ID, onProgress)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, entry.Status)
	require.Less(t, entry.Uploaded, 5)
}

func TestResolveConflictThenStartSyncAppliesOverride(t *testing.T) {
	eng, client, store := newTestEngine(t)

	root := t.TempDir()
	now := time.Now()
	writeLocalFile(t, root, "notes.txt", []byte("local notes"), now)

	_, err := client.PutFile("/Docs/notes.txt", []byte("remote notes!!"), now.Add(-time.Hour))
	require.NoError(t, err)

	p, err := store.Create(Profile{Name: "docs", LocalPath: root, RemotePath: "/Docs", ConflictPolicy: Ask})
	require.NoError(t, err)

	entry, err := eng.StartSync(context.Background(), p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 0, entry.Uploaded)
	require.Equal(t, 0, entry.Downloaded)

	eng.ResolveConflict(p.ID, "notes.txt", Local)

	entry2, err := eng.StartSync(context.Background(), p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, entry2.Uploaded)
}

func TestHistoryCapsAtMaxEntries(t *testing.T) {
	eng, _, store := newTestEngine(t)

	root := t.TempDir()
	p, err := store.Create(Profile{Name: "empty", LocalPath: root, RemotePath: "/Empty"})
	require.NoError(t, err)

	for i := 0; i < maxHistoryEntries+5; i++ {
		eng.recordHistory(p.ID, HistoryEntry{Timestamp: time.Now(), ProfileName: p.Name, Status: StatusCompleted})
	}

	require.Len(t, eng.History(p.ID), maxHistoryEntries)
}
