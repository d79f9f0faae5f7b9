package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/searchindex"
)

func newSearchCmd() *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use: "search <query>",
		Short: "Rebuild the index from the active account's tree and run a query",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			if err := rebuildIndex(cmd.Context(), app); err != nil {
				return fmt.Errorf("indexing: %w", err)
			}

			key, err := parseSortKey(sortBy)
			if err != nil {
				return err
			}

			results, err := app.Index.Search(args[0], key)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			for _, r := range results {
				fmt.Printf("%s\t%s\t%d bytes\n", r.Kind, r.Path, r.Size)
			}

			fmt.Printf("%d results\n", len(results))

			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "relevance", "relevance|name|size|date-modified|date-created|type|path")

	return cmd
}

// rebuildIndex walks the active client's tree breadth-first from root and
// adds every node, then marks the index ready for queries.
func rebuildIndex(ctx context.Context, app *App) error {
	app.Index.BeginBuilding()

	root, err := app.Client.RootNode(ctx)
	if err != nil {
		return err
	}

	queue := []cloudclient.Node{root}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node.Kind == cloudclient.KindFile {
			app.Index.AddNode(node)
			continue
		}

		children, err := app.Client.Children(ctx, node)
		if err != nil {
			return fmt.Errorf("listing children of %s: %w", node.Path, err)
		}

		for _, c := range children {
			app.Index.AddNode(c)

			if c.Kind == cloudclient.KindFolder {
				queue = append(queue, c)
			}
		}
	}

	app.Index.FinishBuilding()

	return nil
}

func parseSortKey(s string) (searchindex.SortKey, error) {
	switch s {
	case "relevance":
		return searchindex.SortRelevance, nil
	case "name":
		return searchindex.SortName, nil
	case "size":
		return searchindex.SortSize, nil
	case "date-modified":
		return searchindex.SortDateModified, nil
	case "date-created":
		return searchindex.SortDateCreated, nil
	case "type":
		return searchindex.SortType, nil
	case "path":
		return searchindex.SortPath, nil
	default:
		return 0, fmt.Errorf("unknown sort key %q", s)
	}
}
