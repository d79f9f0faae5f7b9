package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/renamer"
)

func newRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "rename",
		Short: "Preview and apply bulk regex renames",
	}

	cmd.AddCommand(newRenamePreviewCmd())
	cmd.AddCommand(newRenameApplyCmd())
	cmd.AddCommand(newRenameUndoCmd())
	cmd.AddCommand(newRenameRedoCmd())
	cmd.AddCommand(newRenameExportRulesCmd())
	cmd.AddCommand(newRenameImportRulesCmd())

	return cmd
}

func renamePatternFlags(cmd *cobra.Command, p *renamer.Pattern) {
	cmd.Flags().StringVar(&p.Search, "search", "", "regex to match against the file stem")
	cmd.Flags().StringVar(&p.Replace, "replace", "", "replacement text, may reference $1 capture groups")
	cmd.Flags().BoolVar(&p.CaseSensitive, "case-sensitive", false, "match case-sensitively")
	cmd.Flags().BoolVar(&p.PreserveExtension, "preserve-extension", true, "keep the original extension untouched")
	cmd.Flags().BoolVar(&p.SanitizeForFilesystem, "sanitize", true, "strip characters invalid on common filesystems")
}

func resolveNodes(cmd *cobra.Command, app *App, paths []string) ([]cloudclient.Node, error) {
	nodes := make([]cloudclient.Node, 0, len(paths))

	for _, p := range paths {
		node, ok, err := app.Client.NodeByPath(cmd.Context(), p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}

		if !ok {
			return nil, fmt.Errorf("no such remote path: %s", p)
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

func newRenamePreviewCmd() *cobra.Command {
	var p renamer.Pattern

	cmd := &cobra.Command{
		Use: "preview <remote-path>...",
		Short: "Preview a rename pattern without applying it",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			nodes, err := resolveNodes(cmd, app, args)
			if err != nil {
				return err
			}

			planned, err := app.Renamer.Preview(cmd.Context(), nodes, p)
			if err != nil {
				return fmt.Errorf("preview: %w", err)
			}

			for _, pl := range planned {
				fmt.Printf("%s -> %s\t%s\n", pl.OriginalName, pl.ProposedName, pl.Conflict)
			}

			return nil
		},
	}

	renamePatternFlags(cmd, &p)

	return cmd
}

func newRenameApplyCmd() *cobra.Command {
	var p renamer.Pattern

	cmd := &cobra.Command{
		Use: "apply <remote-path>...",
		Short: "Apply a rename pattern, skipping unresolved conflicts",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			nodes, err := resolveNodes(cmd, app, args)
			if err != nil {
				return err
			}

			planned, err := app.Renamer.Preview(cmd.Context(), nodes, p)
			if err != nil {
				return fmt.Errorf("preview: %w", err)
			}

			applied, err := app.Renamer.Apply(cmd.Context(), planned, nil)
			if err != nil {
				return fmt.Errorf("apply: %w", err)
			}

			fmt.Printf("renamed %d of %d\n", applied, len(planned))

			return nil
		},
	}

	renamePatternFlags(cmd, &p)

	return cmd
}

func newRenameUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use: "undo",
		Short: "Undo the most recent rename batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())
			return app.Renamer.Undo(cmd.Context())
		},
	}
}

func newRenameRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use: "redo",
		Short: "Reapply the most recently undone rename batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())
			return app.Renamer.Redo(cmd.Context())
		},
	}
}

func newRenameExportRulesCmd() *cobra.Command {
	var p renamer.Pattern

	cmd := &cobra.Command{
		Use:   "export-rules <name> <output-path>",
		Short: "Save a named rename pattern to a JSON rule file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			existing := map[string]renamer.Pattern{}

			if data, err := renamer.ImportRules(args[1]); err == nil {
				existing = data
			}

			existing[args[0]] = p

			if err := renamer.ExportRules(args[1], existing); err != nil {
				return fmt.Errorf("export-rules: %w", err)
			}

			fmt.Printf("saved rule %q to %s\n", args[0], args[1])

			return nil
		},
	}

	renamePatternFlags(cmd, &p)

	return cmd
}

func newRenameImportRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-rules <input-path>",
		Short: "List the named rename patterns stored in a JSON rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := renamer.ImportRules(args[0])
			if err != nil {
				return fmt.Errorf("import-rules: %w", err)
			}

			for _, name := range renamer.RuleNames(rules) {
				p := rules[name]
				fmt.Printf("%s\tsearch=%q replace=%q\n", name, p.Search, p.Replace)
			}

			return nil
		},
	}
}
