// Package searchindex implements the Cloud Search Index: an in-memory
// inverted index over remote nodes, built by the front-end walking the
// remote tree and calling AddNode, queried with a small DSL supporting
// extension, size, date, path, regex, wildcard and boolean term
// operators.
package searchindex

import (
	"time"

	"github.com/megacustom/core/internal/cloudclient"
)

// IndexedNode is one entry in the index. A cleared Name marks a tombstoned
// (removed) entry; it is never matched or returned.
type IndexedNode struct {
	Handle uint64
	Name   string
	Path   string
	Parent uint64
	Size   uint64
	CTime  time.Time
	MTime  time.Time
	Kind   cloudclient.NodeKind
}

func indexedFromNode(n cloudclient.Node) IndexedNode {
	return IndexedNode{
		Handle: n.Handle, Name: n.Name, Path: n.Path, Parent: n.Parent,
		Size:   n.Size, CTime: n.CTime, MTime: n.MTime, Kind: n.Kind,
	}
}

func (n IndexedNode) tombstoned() bool { return n.Name == "" }

// SortKey orders Search results.
type SortKey int

// Sort keys
const (
	SortRelevance SortKey = iota
	SortName
	SortSize
	SortDateModified
	SortDateCreated
	SortType
	SortPath
)
