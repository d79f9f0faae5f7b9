package uploader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
	"github.com/megacustom/core/internal/transfer"
)

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))

	return p
}

func TestStartUploadClassifiesAndEnqueues(t *testing.T) {
	dir := t.TempDir()
	pdf := writeTempFile(t, dir, "report.pdf", 10)
	mp4 := writeTempFile(t, dir, "clip.mp4", 20)

	client := cloudclient.NewFake()
	sched := transfer.New(client, events.New(nil), nil)
	up := New(sched, nil)

	rules := []Rule{
		{Kind: ByExtension, Pattern: "pdf", Destination: "/docs", Enabled: true},
		{Kind: Default, Destination: "/misc", Enabled: true},
	}

	batch, err := up.StartUpload(context.Background(), []string{pdf, mp4}, nil, rules, 0)
	require.NoError(t, err)
	assert.Len(t, batch.TaskIDs(), 2)

	prog := batch.Progress()
	assert.Equal(t, 2, prog.TotalFiles)
	assert.Equal(t, uint64(30), prog.TotalBytes)
}

func TestStartUploadSkipsUnreadableSource(t *testing.T) {
	dir := t.TempDir()

	client := cloudclient.NewFake()
	sched := transfer.New(client, events.New(nil), nil)
	up := New(sched, nil)

	batch, err := up.StartUpload(
		context.Background(),
		[]string{filepath.Join(dir, "missing.txt")},
		nil,
		[]Rule{{Kind: Default, Destination: "/", Enabled: true}},
		0,
	)
	require.NoError(t, err)
	assert.Empty(t, batch.TaskIDs())
}

func TestStartUploadSkipsDirectorySource(t *testing.T) {
	dir := t.TempDir()

	client := cloudclient.NewFake()
	sched := transfer.New(client, events.New(nil), nil)
	up := New(sched, nil)

	batch, err := up.StartUpload(
		context.Background(),
		[]string{dir},
		nil,
		[]Rule{{Kind: Default, Destination: "/", Enabled: true}},
		0,
	)
	require.NoError(t, err)
	assert.Empty(t, batch.TaskIDs())
}

func TestBatchProgressCountsTerminalStates(t *testing.T) {
	dir := t.TempDir()
	f := writeTempFile(t, dir, "a.txt", 5)

	client := cloudclient.NewFakeWithOS()
	sched := transfer.New(client, events.New(nil), nil)
	up := New(sched, nil)

	batch, err := up.StartUpload(
		context.Background(), []string{f}, nil,
		[]Rule{{Kind: Default, Destination: "/", Enabled: true}}, 0,
	)
	require.NoError(t, err)
	require.Len(t, batch.TaskIDs(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return batch.Progress().Done()
	}, time.Second, 5*time.Millisecond)

	prog := batch.Progress()
	assert.Equal(t, 1, prog.CompletedFiles)
}
