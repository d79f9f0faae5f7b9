// Package cloudclient defines the capability trait over an opaque,
// per-account cloud-storage session, and ships two implementations:
// httpadapter, a retrying HTTP client wrapping an OAuth2-backed REST
// backend, and Fake, an in-memory double used by tests and as an
// offline demo backend for the thin CLI.
//
// Only this package holds live vendor handles. Every value that crosses
// into another subsystem is a Node snapshot: immutable, value-typed,
// safe to copy and compare by Handle.
package cloudclient

import (
	"context"
	"time"
)

// NodeKind distinguishes files from folders.
type NodeKind int

// Node kinds.
const (
	KindFile NodeKind = iota
	KindFolder
)

func (k NodeKind) String() string {
	if k == KindFolder {
		return "folder"
	}

	return "file"
}

// Node is an owned, value-typed snapshot of a remote node. Two nodes are
// equal iff their Handle matches.
type Node struct {
	Handle uint64
	Name   string
	Path   string
	Parent uint64
	Size   uint64
	CTime  time.Time
	MTime  time.Time
	Kind   NodeKind
}

// SessionToken is an opaque, restorable login credential. The Credential
// Store (internal/credstore) is the only component that persists one.
type SessionToken []byte

// TransferEvent is delivered to a Listener over the lifetime of one
// transfer. Exactly one of the terminal kinds (Finished) closes the
// transfer.
type TransferEvent struct {
	Kind       TransferEventKind
	BytesSent  uint64
	TotalBytes uint64
	Err error // set on Kind == EventFinished with failure
	TemporaryErr error // set on Kind == EventTemporaryError; transfer continues
}

// TransferEventKind enumerates the events a Listener receives.
type TransferEventKind int

// Transfer event kinds ("listener is a sink for
// start, progress, finish(ok|err), temporary_error").
const (
	EventStart TransferEventKind = iota
	EventProgress
	EventFinished
	EventTemporaryError
)

// Listener receives TransferEvent callbacks. Callbacks may arrive on any
// goroutine; the scheduler, the only caller that constructs a Listener,
// re-marshals them onto its own event channel rather than assuming a
// particular goroutine.
type Listener interface {
	OnTransferEvent(TransferEvent)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(TransferEvent)

// OnTransferEvent implements Listener.
func (f ListenerFunc) OnTransferEvent(ev TransferEvent) { f(ev) }

// TransferHandle identifies a single in-flight transfer so the caller can
// cancel it.
type TransferHandle interface {
	Cancel()
}

// TransferKind distinguishes uploads from downloads for cancel_transfers.
type TransferKind int

// Transfer kinds.
const (
	TransferUpload TransferKind = iota
	TransferDownload
	TransferAny
)

// Client is the capability trait every account's cloud session satisfies.
// Methods are required to be non-blocking or short; long-running work is
// reported through a Listener instead.
type Client interface {
	Login(ctx context.Context, email, password string) (SessionToken, error)
	LoginWithSession(ctx context.Context, token SessionToken) error
	IsLoggedIn() bool

	RootNode(ctx context.Context) (Node, error)
	NodeByPath(ctx context.Context, path string) (Node, bool, error)
	Children(ctx context.Context, node Node) ([]Node, error)
	Search(ctx context.Context, nameSubstring string) ([]Node, error)

	StartUpload(ctx context.Context, localPath string, parent Node, name string, l Listener) (TransferHandle, error)
	StartDownload(ctx context.Context, node Node, localPath string, l Listener) (TransferHandle, error)

	CreateFolder(ctx context.Context, path string) (Node, error)
	Remove(ctx context.Context, node Node) error
	Rename(ctx context.Context, node Node, newName string) error

	CancelTransfers(kind TransferKind)
}
