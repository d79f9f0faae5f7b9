package smartsync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
)

// defaultMTimeTolerance bounds how far apart two mtimes can be before a
// file is still considered equal.
const defaultMTimeTolerance = 2 * time.Second

type localEntry struct {
	size  int64
	mtime time.Time
}

type remoteEntry struct {
	size   uint64
	mtime  time.Time
	handle uint64
	node   cloudclient.Node
}

// walkLocalTree lists every regular file under root, relative-pathed and
// slash-separated.
func walkLocalTree(root string) (map[string]localEntry, error) {
	out := make(map[string]localEntry)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		out[filepath.ToSlash(rel)] = localEntry{size: info.Size(), mtime: info.ModTime()}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("smartsync: walking local tree %s: %w", root, err)
	}

	return out, nil
}

// walkRemoteTree lists every remote file under root (by repeated Children
// calls), relative-pathed to root.
func walkRemoteTree(ctx context.Context, client cloudclient.Client, root cloudclient.Node) (map[string]remoteEntry, error) {
	out := make(map[string]remoteEntry)

	var walk func(node cloudclient.Node) error
	walk = func(node cloudclient.Node) error {
		children, err := client.Children(ctx, node)
		if err != nil {
			return fmt.Errorf("smartsync: listing children of %s: %w", node.Path, err)
		}

		for _, c := range children {
			if c.Kind == cloudclient.KindFolder {
				if err := walk(c); err != nil {
					return err
				}

				continue
			}

			rel, err := relPathUnder(root.Path, c.Path)
			if err != nil {
				return err
			}

			out[rel] = remoteEntry{size: c.Size, mtime: c.MTime, handle: c.Handle, node: c}
		}

		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}

	return out, nil
}

func relPathUnder(root, p string) (string, error) {
	root = path.Clean("/" + root)
	p = path.Clean("/" + p)

	if root == "/" {
		return p[1:], nil
	}

	if p == root {
		return "", nil
	}

	prefix := root + "/"
	if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
		return "", fmt.Errorf("smartsync: %s is not under %s", p, root)
	}

	return p[len(prefix):], nil
}

// Analyze runs the non-mutating analysis phase: walks
// both trees, applies include/exclude filtering, and classifies every
// relative path into a Sync Action. conflictOverride supplies a resolved
// policy for relPaths previously passed to ResolveConflict, so a re-run
// after resolution no longer yields a pending Conflict for that file.
func Analyze(
	ctx context.Context, client cloudclient.Client, p Profile, conflictOverride func(relPath string) (ConflictPolicy, bool),
) ([]Action, error) {
	local, err := walkLocalTree(p.LocalPath)
	if err != nil {
		return nil, err
	}

	remoteRoot, found, err := client.NodeByPath(ctx, p.RemotePath)
	if err != nil {
		return nil, fmt.Errorf("smartsync: resolving remote root %s: %w", p.RemotePath, err)
	}

	remote := make(map[string]remoteEntry)
	if found {
		remote, err = walkRemoteTree(ctx, client, remoteRoot)
		if err != nil {
			return nil, err
		}
	}

	filters := newFilterSet(p)
	tolerance := p.MTimeTolerance
	if tolerance <= 0 {
		tolerance = defaultMTimeTolerance
	}

	claimedRemoteNames := make(map[string]bool)
	existsRemote := func(rel string) bool {
		if _, ok := remote[rel]; ok {
			return true
		}

		return claimedRemoteNames[rel]
	}

	seen := make(map[string]bool, len(local)+len(remote))
	var actions []Action

	for relPath := range local {
		seen[relPath] = true
	}

	for relPath := range remote {
		seen[relPath] = true
	}

	for relPath := range seen {
		if !filters.allows(relPath) {
			continue
		}

		l, inLocal := local[relPath]
		r, inRemote := remote[relPath]

		switch {
		case inLocal && inRemote:
			if sizesAndTimesEqual(l, r, tolerance) {
				actions = append(actions, Action{RelPath: relPath, Kind: Skip, LocalSize: uint64(l.size), RemoteSize: r.size, LocalMTime: l.mtime, RemoteMTime: r.mtime, RemoteHandle: r.handle})
				continue
			}

			policy := p.ConflictPolicy
			if conflictOverride != nil {
				if override, ok := conflictOverride(relPath); ok {
					policy = override
				}
			}

			resolved := resolveConflict(policy, relPath, l, r, existsRemote)
			for _, ra := range resolved {
				if ra.Kind == Upload && ra.RemoteRelPath != "" {
					claimedRemoteNames[ra.RemoteRelPath] = true
				}
			}

			actions = append(actions, resolved...)
		case inLocal && !inRemote:
			actions = append(actions, classifyLocalOrphan(relPath, l, p))
		case inRemote && !inLocal:
			actions = append(actions, classifyRemoteOrphan(relPath, r, p))
		}
	}

	return actions, nil
}

func sizesAndTimesEqual(l localEntry, r remoteEntry, tolerance time.Duration) bool {
	if uint64(l.size) != r.size {
		return false
	}

	diff := l.mtime.Sub(r.mtime)
	if diff < 0 {
		diff = -diff
	}

	return diff <= tolerance
}

// classifyLocalOrphan handles a relPath present only locally.
func classifyLocalOrphan(relPath string, l localEntry, p Profile) Action {
	a := Action{RelPath: relPath, LocalSize: uint64(l.size), LocalMTime: l.mtime}

	switch {
	case p.Direction.AllowsPush():
		a.Kind = Upload
	case p.DeleteOrphans:
		a.Kind = DeleteLocal
	default:
		a.Kind = Skip
	}

	return a
}

// classifyRemoteOrphan handles a relPath present only remotely.
func classifyRemoteOrphan(relPath string, r remoteEntry, p Profile) Action {
	a := Action{RelPath: relPath, RemoteSize: r.size, RemoteMTime: r.mtime, RemoteHandle: r.handle}

	switch {
	case p.Direction.AllowsPull():
		a.Kind = Download
	case p.DeleteOrphans:
		a.Kind = DeleteRemote
	default:
		a.Kind = Skip
	}

	return a
}
