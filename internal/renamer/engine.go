package renamer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/megacustom/core/internal/cloudclient"
)

// maxUndoDepth bounds the undo stack "bounded at
// 50".
const maxUndoDepth = 50

// ConflictResolver decides the final name for a flagged conflict; ok=false
// skips the rename entirely.
type ConflictResolver func(original, proposed string) (final string, ok bool)

// renameRecord is one node's rename, enough to reverse it later: dir is
// the remote parent path, used to re-resolve the node by its current name
// since handles may be reused by some backends across renames.
type renameRecord struct {
	Dir          string
	OriginalName string
	NewName      string
}

type operation struct {
	entries []renameRecord
}

// Engine runs Preview/Apply against a Cloud Client and maintains the
// undo/redo stacks.
type Engine struct {
	client cloudclient.Client
	logger *slog.Logger

	mu   sync.Mutex
	undo []operation
	redo []operation
}

// New creates an Engine bound to client.
func New(client cloudclient.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{client: client, logger: logger}
}

// Preview runs the non-mutating planning phase.
func (e *Engine) Preview(ctx context.Context, nodes []cloudclient.Node, pattern Pattern) ([]PlannedRename, error) {
	return Preview(ctx, e.client, nodes, pattern)
}

// Apply renames every entry in planned through the Cloud Client. An entry
// with a conflict is resolved via resolver (nil resolver skips every
// conflicted entry); a successful run is pushed onto the undo stack and
// clears the redo stack. It returns the number of nodes actually renamed.
func (e *Engine) Apply(ctx context.Context, planned []PlannedRename, resolver ConflictResolver) (int, error) {
	op := operation{}

	for _, pr := range planned {
		final := pr.ProposedName

		if pr.Conflict != NoConflict {
			if resolver == nil {
				continue
			}

			resolved, ok := resolver(pr.OriginalName, pr.ProposedName)
			if !ok {
				continue
			}

			final = resolved
		}

		if final == pr.OriginalName {
			continue
		}

		if err := e.client.Rename(ctx, pr.Node, final); err != nil {
			return len(op.entries), fmt.Errorf("renamer: renaming %s: %w", pr.OriginalName, err)
		}

		op.entries = append(op.entries, renameRecord{
			Dir: path.Dir(pr.Node.Path), OriginalName: pr.OriginalName, NewName: final,
		})
	}

	if len(op.entries) == 0 {
		return 0, nil
	}

	e.mu.Lock()
	e.pushUndoLocked(op)
	e.redo = nil
	e.mu.Unlock()

	return len(op.entries), nil
}

func (e *Engine) pushUndoLocked(op operation) {
	e.undo = append(e.undo, op)
	if len(e.undo) > maxUndoDepth {
		e.undo = e.undo[len(e.undo)-maxUndoDepth:]
	}
}

// Undo reverses the most recent Apply operation, renaming every entry
// back to its original name in reverse order, and pushes it onto the
// redo stack on success.
func (e *Engine) Undo(ctx context.Context) error {
	e.mu.Lock()
	if len(e.undo) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("renamer: nothing to undo")
	}

	op := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.mu.Unlock()

	for i := len(op.entries) - 1; i >= 0; i-- {
		rec := op.entries[i]
		if err := e.renameBack(ctx, rec.Dir, rec.NewName, rec.OriginalName); err != nil {
			e.mu.Lock()
			e.undo = append(e.undo, op)
			e.mu.Unlock()

			return err
		}
	}

	e.mu.Lock()
	e.redo = append(e.redo, op)
	e.mu.Unlock()

	return nil
}

// Redo re-applies the most recently undone operation.
func (e *Engine) Redo(ctx context.Context) error {
	e.mu.Lock()
	if len(e.redo) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("renamer: nothing to redo")
	}

	op := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	e.mu.Unlock()

	for _, rec := range op.entries {
		if err := e.renameBack(ctx, rec.Dir, rec.OriginalName, rec.NewName); err != nil {
			e.mu.Lock()
			e.redo = append(e.redo, op)
			e.mu.Unlock()

			return err
		}
	}

	e.mu.Lock()
	e.pushUndoLocked(op)
	e.mu.Unlock()

	return nil
}

func (e *Engine) renameBack(ctx context.Context, dir, currentName, targetName string) error {
	node, found, err := e.client.NodeByPath(ctx, path.Join(dir, currentName))
	if err != nil {
		return fmt.Errorf("renamer: resolving %s/%s: %w", dir, currentName, err)
	}

	if !found {
		return fmt.Errorf("renamer: %s/%s no longer exists", dir, currentName)
	}

	return e.client.Rename(ctx, node, targetName)
}

// UndoDepth and RedoDepth report the current stack sizes, for UI badges.
func (e *Engine) UndoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.undo)
}

func (e *Engine) RedoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.redo)
}
