package renamer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/megacustom/core/internal/cloudclient"
)

// PlannedRename is one node's proposed rename, produced by the
// non-mutating Preview phase.
type PlannedRename struct {
	Node         cloudclient.Node
	OriginalName string
	ProposedName string
	Conflict     ConflictKind
}

// Preview applies pattern to every node in nodes without renaming
// anything, flagging batch-internal duplicates and collisions with
// existing remote siblings "conflicts flagged but
// not resolved automatically".
func Preview(ctx context.Context, client cloudclient.Client, nodes []cloudclient.Node, pattern Pattern) ([]PlannedRename, error) {
	siblingsByDir := make(map[string]map[string]bool)

	for _, n := range nodes {
		dir := path.Dir(n.Path)
		if _, ok := siblingsByDir[dir]; ok {
			continue
		}

		names, err := siblingNames(ctx, client, dir)
		if err != nil {
			return nil, err
		}

		siblingsByDir[dir] = names
	}

	planned := make([]PlannedRename, len(nodes))
	countByDir := make(map[string]map[string]int)

	for i, n := range nodes {
		proposed, err := ApplyPattern(pattern, n.Name, n.MTime, i)
		if err != nil {
			return nil, err
		}

		dir := path.Dir(n.Path)
		planned[i] = PlannedRename{Node: n, OriginalName: n.Name, ProposedName: proposed}

		if _, ok := countByDir[dir]; !ok {
			countByDir[dir] = make(map[string]int)
		}

		countByDir[dir][strings.ToLower(proposed)]++
	}

	for i := range planned {
		dir := path.Dir(planned[i].Node.Path)
		key := strings.ToLower(planned[i].ProposedName)

		switch {
		case countByDir[dir][key] > 1:
			planned[i].Conflict = DuplicateInBatch
		case planned[i].ProposedName != planned[i].OriginalName && siblingsByDir[dir][key]:
			planned[i].Conflict = ExistingSibling
		}
	}

	return planned, nil
}

func siblingNames(ctx context.Context, client cloudclient.Client, dir string) (map[string]bool, error) {
	parent, found, err := client.NodeByPath(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("renamer: resolving parent %s: %w", dir, err)
	}

	if !found {
		return map[string]bool{}, nil
	}

	children, err := client.Children(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("renamer: listing children of %s: %w", dir, err)
	}

	names := make(map[string]bool, len(children))
	for _, c := range children {
		names[strings.ToLower(c.Name)] = true
	}

	return names, nil
}
