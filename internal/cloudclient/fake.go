package cloudclient

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Client double. It holds a complete node tree and
// serves Login/Children/Search/transfers from memory, making it suitable
// both for tests (deterministic, no network) and as an offline demo
// backend for the thin CLI.
type Fake struct {
	mu sync.Mutex
	loggedIn bool
	nextHandle uint64
	nodes map[uint64]Node // handle -> node
	children map[uint64][]uint64 // parent handle -> child handles
	content map[uint64][]byte // handle -> file bytes, files only

	// TransferDelay, when non-zero, is slept (in small steps, emitting
	// progress) before a transfer completes. Zero means complete instantly.
	TransferDelay time.Duration

	// FailUploads / FailDownloads, when set, makes the next N transfers of
	// that kind fail with this error. Decremented on each attempt.
	FailUploads int
	FailDownloads int
	TransferErr error

	// ReadFile / WriteFile back StartUpload/StartDownload's local file
	// access. Callers wire os.ReadFile/os.WriteFile for real use, or a
	// test double backed by an in-memory map.
	ReadFile readFileFunc
	WriteFile writeFileFunc
}

// NewFake creates a Fake with a single root folder.
func NewFake() *Fake {
	f := &Fake{
		nextHandle: 1,
		nodes: make(map[uint64]Node),
		children: make(map[uint64][]uint64),
		content: make(map[uint64][]byte),
	}

	root := Node{Handle: 0, Name: "", Path: "/", Kind: KindFolder, MTime: time.Now(), CTime: time.Now()}
	f.nodes[0] = root

	return f
}

// NewFakeWithOS creates a Fake wired to the real local filesystem for
// ReadFile/WriteFile, for use as an offline demo backend rather than a
// test double.
func NewFakeWithOS() *Fake {
	f := NewFake()
	f.ReadFile = os.ReadFile
	f.WriteFile = func(path string, data []byte) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}

		return os.WriteFile(path, data, 0o600)
	}

	return f
}

func (f *Fake) allocHandle() uint64 {
	h := f.nextHandle
	f.nextHandle++

	return h
}

// Login always succeeds for any non-empty email, returning a deterministic
// token derived from the email so LoginWithSession can validate it.
func (f *Fake) Login(_ context.Context, email, _ string) (SessionToken, error) {
	if email == "" {
		return nil, fmt.Errorf("cloudclient: fake login: email required")
	}

	f.mu.Lock()
	f.loggedIn = true
	f.mu.Unlock()

	return SessionToken("fake-session:" + email), nil
}

// LoginWithSession accepts any non-empty token produced by Login.
func (f *Fake) LoginWithSession(_ context.Context, token SessionToken) error {
	if len(token) == 0 {
		return fmt.Errorf("cloudclient: fake login: empty session token")
	}

	f.mu.Lock()
	f.loggedIn = true
	f.mu.Unlock()

	return nil
}

// IsLoggedIn reports the current session state.
func (f *Fake) IsLoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loggedIn
}

// RootNode returns the synthetic root folder (handle 0).
func (f *Fake) RootNode(_ context.Context) (Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.nodes[0], nil
}

// NodeByPath resolves an absolute, slash-separated path to a Node.
func (f *Fake) NodeByPath(_ context.Context, p string) (Node, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clean := path.Clean("/" + strings.Trim(p, "/"))
	for _, n := range f.nodes {
		if n.Path == clean {
			return n, true, nil
		}
	}

	return Node{}, false, nil
}

// Children lists the immediate children of node.
func (f *Fake) Children(_ context.Context, node Node) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Node, 0, len(f.children[node.Handle]))
	for _, h := range f.children[node.Handle] {
		out = append(out, f.nodes[h])
	}

	return out, nil
}

// Search returns every node whose name contains nameSubstring
// (case-sensitive, matching the vendor's literal substring search).
func (f *Fake) Search(_ context.Context, nameSubstring string) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Node

	for h, n := range f.nodes {
		if h == 0 {
			continue
		}

		if strings.Contains(n.Name, nameSubstring) {
			out = append(out, n)
		}
	}

	return out, nil
}

// CreateFolder creates (and returns) the folder at path, creating any
// missing ancestors.
func (f *Fake) CreateFolder(_ context.Context, p string) (Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mkdirAll(p)
}

// mkdirAll must be called with f.mu held.
func (f *Fake) mkdirAll(p string) (Node, error) {
	clean := path.Clean("/" + strings.Trim(p, "/"))
	if clean == "/" {
		return f.nodes[0], nil
	}

	for h, n := range f.nodes {
		if n.Path == clean {
			if n.Kind != KindFolder {
				return Node{}, fmt.Errorf("cloudclient: %s exists and is not a folder", clean)
			}

			return f.nodes[h], nil
		}
	}

	parentPath := path.Dir(clean)

	parent, err := f.mkdirAll(parentPath)
	if err != nil {
		return Node{}, err
	}

	h := f.allocHandle()
	now := time.Now()
	n := Node{
		Handle: h, Name: path.Base(clean), Path: clean, Parent: parent.Handle,
		Kind: KindFolder, MTime: now, CTime: now,
	}
	f.nodes[h] = n
	f.children[parent.Handle] = append(f.children[parent.Handle], h)

	return n, nil
}

// PutFile seeds a file node with content, for tests that need the remote
// tree pre-populated without going through StartUpload.
func (f *Fake) PutFile(p string, content []byte, mtime time.Time) (Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clean := path.Clean("/" + strings.Trim(p, "/"))
	parent, err := f.mkdirAll(path.Dir(clean))
	if err != nil {
		return Node{}, err
	}

	h := f.allocHandle()
	n := Node{
		Handle: h, Name: path.Base(clean), Path: clean, Parent: parent.Handle,
		Size: uint64(len(content)), Kind: KindFile, MTime: mtime, CTime: mtime,
	}
	f.nodes[h] = n
	f.content[h] = content
	f.children[parent.Handle] = append(f.children[parent.Handle], h)

	return n, nil
}

// Remove deletes node and, if it is a folder, its entire subtree.
func (f *Fake) Remove(_ context.Context, node Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.removeLocked(node.Handle)
}

func (f *Fake) removeLocked(h uint64) error {
	for _, child := range f.children[h] {
		if err := f.removeLocked(child); err != nil {
			return err
		}
	}

	n, ok := f.nodes[h]
	if !ok {
		return fmt.Errorf("cloudclient: remove: handle %d not found", h)
	}

	siblings := f.children[n.Parent]
	for i, s := range siblings {
		if s == h {
			f.children[n.Parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}

	delete(f.nodes, h)
	delete(f.content, h)
	delete(f.children, h)

	return nil
}

// Rename changes node's name in place.
func (f *Fake) Rename(_ context.Context, node Node, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[node.Handle]
	if !ok {
		return fmt.Errorf("cloudclient: rename: handle %d not found", node.Handle)
	}

	n.Name = newName
	n.Path = path.Join(path.Dir(n.Path), newName)
	f.nodes[node.Handle] = n

	return nil
}

// StartUpload reads localPath's bytes via the ReadFileFunc hook (tests set
// Fake.ReadFile) and stores them under parent/name, emitting Listener
// events synchronously (TransferDelay == 0) or via a background goroutine.
func (f *Fake) StartUpload(ctx context.Context, localPath string, parent Node, name string, l Listener) (TransferHandle, error) {
	f.mu.Lock()
	if f.FailUploads > 0 {
		f.FailUploads--
		err := f.TransferErr
		f.mu.Unlock()

		if err == nil {
			err = fmt.Errorf("cloudclient: simulated upload failure")
		}

		return f.runTransfer(ctx, 0, l, err), nil
	}
	f.mu.Unlock()

	data, err := f.readFile(localPath)
	if err != nil {
		return f.runTransfer(ctx, 0, l, err), nil
	}

	destPath := path.Join(parent.Path, name)

	return f.runTransfer(ctx, uint64(len(data)), l, nil, func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		for h, n := range f.nodes {
			if n.Path == destPath {
				n.Size = uint64(len(data))
				n.MTime = time.Now()
				f.nodes[h] = n
				f.content[h] = data

				return
			}
		}

		h := f.allocHandle()
		now := time.Now()
		f.nodes[h] = Node{Handle: h, Name: name, Path: destPath, Parent: parent.Handle, Size: uint64(len(data)), Kind: KindFile, MTime: now, CTime: now}
		f.content[h] = data
		f.children[parent.Handle] = append(f.children[parent.Handle], h)
	}), nil
}

// StartDownload writes node's stored content via the WriteFileFunc hook.
func (f *Fake) StartDownload(ctx context.Context, node Node, localPath string, l Listener) (TransferHandle, error) {
	f.mu.Lock()
	if f.FailDownloads > 0 {
		f.FailDownloads--
		err := f.TransferErr
		f.mu.Unlock()

		if err == nil {
			err = fmt.Errorf("cloudclient: simulated download failure")
		}

		return f.runTransfer(ctx, 0, l, err), nil
	}

	data := f.content[node.Handle]
	f.mu.Unlock()

	return f.runTransfer(ctx, uint64(len(data)), l, nil, func() {
		if f.WriteFile != nil {
			_ = f.WriteFile(localPath, data)
		}
	}), nil
}

// readFileFunc backs Fake.ReadFile; writeFileFunc backs Fake.WriteFile.
type readFileFunc func(path string) ([]byte, error)
type writeFileFunc func(path string, data []byte) error

func (f *Fake) readFile(p string) ([]byte, error) {
	if f.ReadFile != nil {
		return f.ReadFile(p)
	}

	return nil, fmt.Errorf("cloudclient: fake: no ReadFile hook configured")
}

func (f *Fake) runTransfer(ctx context.Context, size uint64, l Listener, err error, onDone...func()) TransferHandle {
	h := &fakeHandle{cancelled: make(chan struct{})}

	notify := func(ev TransferEvent) {
		if l != nil {
			l.OnTransferEvent(ev)
		}
	}

	run := func() {
		notify(TransferEvent{Kind: EventStart, TotalBytes: size})

		if f.TransferDelay > 0 {
			steps := 4
			for i := 1; i <= steps; i++ {
				select {
				case <-h.cancelled:
					notify(TransferEvent{Kind: EventFinished, Err: fmt.Errorf("cloudclient: transfer cancelled")})
					return
				case <-ctx.Done():
					notify(TransferEvent{Kind: EventFinished, Err: ctx.Err()})
					return
				case <-time.After(f.TransferDelay / time.Duration(steps)):
				}

				notify(TransferEvent{Kind: EventProgress, BytesSent: size * uint64(i) / uint64(steps), TotalBytes: size})
			}
		} else {
			notify(TransferEvent{Kind: EventProgress, BytesSent: size, TotalBytes: size})
		}

		if err != nil {
			notify(TransferEvent{Kind: EventFinished, Err: err})
			return
		}

		for _, fn := range onDone {
			fn()
		}

		notify(TransferEvent{Kind: EventFinished})
	}

	if f.TransferDelay > 0 {
		go run()
	} else {
		run()
	}

	return h
}

// CancelTransfers is a no-op for the fake: transfers complete
// synchronously or within TransferDelay and are not individually tracked
// by kind.
func (f *Fake) CancelTransfers(TransferKind) {}

type fakeHandle struct {
	once sync.Once
	cancelled chan struct{}
}

func (h *fakeHandle) Cancel() {
	h.once.Do(func() { close(h.cancelled) })
}

var _ Client = (*Fake)(nil)
