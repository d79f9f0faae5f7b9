package transfer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/events"
)

// controllableClient is a test double that never auto-completes transfers;
// the test drives completion explicitly by calling finish on the captured
// listener, so admission-loop scenarios are deterministic.
type controllableClient struct {
	mu sync.Mutex
	listeners map[string]cloudclient.Listener // keyed by source+":"+destination
}

func newControllableClient() *controllableClient {
	return &controllableClient{listeners: make(map[string]cloudclient.Listener)}
}

func (c *controllableClient) key(a, b string) string { return a + ":" + b }

func (c *controllableClient) Login(context.Context, string, string) (cloudclient.SessionToken, error) {
	return nil, nil
}
func (c *controllableClient) LoginWithSession(context.Context, cloudclient.SessionToken) error {
	return nil
}
func (c *controllableClient) IsLoggedIn() bool { return true }
func (c *controllableClient) RootNode(context.Context) (cloudclient.Node, error) {
	return cloudclient.Node{Path: "/"}, nil
}

func (c *controllableClient) NodeByPath(_ context.Context, p string) (cloudclient.Node, bool, error) {
	return cloudclient.Node{Path: p}, true, nil
}

func (c *controllableClient) Children(context.Context, cloudclient.Node) ([]cloudclient.Node, error) {
	return nil, nil
}
func (c *controllableClient) Search(context.Context, string) ([]cloudclient.Node, error) { return nil, nil }

func (c *controllableClient) StartUpload(
	_ context.Context, local string, parent cloudclient.Node, name string, l cloudclient.Listener,
) (cloudclient.TransferHandle, error) {
	c.mu.Lock()
	c.listeners[c.key(local, parent.Path+"/"+name)] = l
	c.mu.Unlock()

	l.OnTransferEvent(cloudclient.TransferEvent{Kind: cloudclient.EventStart})

	return &noopHandle{}, nil
}

func (c *controllableClient) StartDownload(
	_ context.Context, node cloudclient.Node, local string, l cloudclient.Listener,
) (cloudclient.TransferHandle, error) {
	c.mu.Lock()
	c.listeners[c.key(node.Path, local)] = l
	c.mu.Unlock()

	l.OnTransferEvent(cloudclient.TransferEvent{Kind: cloudclient.EventStart})

	return &noopHandle{}, nil
}

// completeByDestSuffix finishes the first in-flight transfer whose
// destination key contains suffix.
func (c *controllableClient) completeByDestSuffix(suffix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, l := range c.listeners {
		if len(k) >= len(suffix) && k[len(k)-len(suffix):] == suffix {
			l.OnTransferEvent(cloudclient.TransferEvent{Kind: cloudclient.EventFinished})
			delete(c.listeners, k)

			return true
		}
	}

	return false
}

func (c *controllableClient) CreateFolder(context.Context, string) (cloudclient.Node, error) {
	return cloudclient.Node{}, nil
}
func (c *controllableClient) Remove(context.Context, cloudclient.Node) error { return nil }
func (c *controllableClient) Rename(context.Context, cloudclient.Node, string) error { return nil }
func (c *controllableClient) CancelTransfers(cloudclient.TransferKind) {}

type noopHandle struct{}

func (n *noopHandle) Cancel() {}

func waitForState(t *testing.T, s *Scheduler, id uint64, want State) {
	t.Helper()

	require.Eventually(t, func() bool {
		task, ok := s.Get(id)
		return ok && task.State == want
	}, time.Second, 5*time.Millisecond, fmt.Sprintf("task %d never reached state %s", id, want))
}

func TestAdmissionPromotesUpToMaxConcurrent(t *testing.T) {
	client := newControllableClient()
	sched := New(client, events.New(nil), nil)
	sched.SetMaxConcurrent(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	defer sched.Stop()

	a := sched.Enqueue(Upload, "/local/a", "/remote/a", 10, 0)
	b := sched.Enqueue(Upload, "/local/b", "/remote/b", 10, 0)
	c := sched.Enqueue(Upload, "/local/c", "/remote/c", 10, 0)

	waitForState(t, sched, a.ID, Active)
	waitForState(t, sched, b.ID, Active)

	cTask, _ := sched.Get(c.ID)
	assert.Equal(t, Pending, cTask.State)

	require.Eventually(t, func() bool { return client.completeByDestSuffix("/remote/a") }, time.Second, 5*time.Millisecond)

	waitForState(t, sched, a.ID, Completed)
	waitForState(t, sched, c.ID, Active)

	bTask, _ := sched.Get(b.ID)
	assert.Equal(t, Active, bTask.State)
}

func TestCancelPendingTask(t *testing.T) {
	client := newControllableClient()
	sched := New(client, events.New(nil), nil)
	sched.SetMaxConcurrent(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	defer sched.Stop()

	a := sched.Enqueue(Upload, "/local/a", "/remote/a", 10, 0)
	b := sched.Enqueue(Upload, "/local/b", "/remote/b", 10, 0)

	waitForState(t, sched, a.ID, Active)

	require.NoError(t, sched.Cancel(b.ID))

	bTask, ok := sched.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, Cancelled, bTask.State)
}

func TestRetryReopensFailedTask(t *testing.T) {
	client := newControllableClient()
	sched := New(client, events.New(nil), nil)
	sched.SetMaxConcurrent(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	defer sched.Stop()

	a := sched.Enqueue(Upload, "/local/a", "/remote/a", 10, 0)
	waitForState(t, sched, a.ID, Active)

	client.mu.Lock()
	for _, l := range client.listeners {
		l.OnTransferEvent(cloudclient.TransferEvent{Kind: cloudclient.EventFinished, Err: fmt.Errorf("boom")})
	}
	client.mu.Unlock()

	waitForState(t, sched, a.ID, Failed)

	require.NoError(t, sched.Retry(a.ID))

	task, ok := sched.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, uint32(1), task.Retries)
	assert.Equal(t, uint64(0), task.Bytes)
}

func TestPriorityOrdering(t *testing.T) {
	client := newControllableClient()
	sched := New(client, events.New(nil), nil)
	sched.SetMaxConcurrent(0) // clamped to 1; tasks stay pending because Run is never started

	low := sched.Enqueue(Upload, "/l", "/r/low", 10, 0)
	high := sched.Enqueue(Upload, "/l2", "/r/high", 10, 5)

	sched.mu.Lock()
	order := sched.pending.list()
	sched.mu.Unlock()

	require.Len(t, order, 2)
	assert.Equal(t, high.ID, order[0].ID)
	assert.Equal(t, low.ID, order[1].ID)
}

func TestSetMaxConcurrentClampsRange(t *testing.T) {
	client := newControllableClient()
	sched := New(client, events.New(nil), nil)

	sched.SetMaxConcurrent(0)
	assert.Equal(t, MinMaxConcurrent, sched.maxConcurrent)

	sched.SetMaxConcurrent(100)
	assert.Equal(t, MaxMaxConcurrent, sched.maxConcurrent)
}
