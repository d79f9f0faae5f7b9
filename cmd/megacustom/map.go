package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/foldermap"
)

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "map",
		Short: "Manage folder mappings and run their uploads",
	}

	cmd.AddCommand(newMapAddCmd())
	cmd.AddCommand(newMapListCmd())
	cmd.AddCommand(newMapUploadCmd())

	return cmd
}

func newMapAddCmd() *cobra.Command {
	return &cobra.Command{
		Use: "add <name> <local-path> <remote-path>",
		Short: "Add a folder mapping",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())
			return app.FolderMap.Add(args[0], args[1], args[2])
		},
	}
}

func newMapListCmd() *cobra.Command {
	return &cobra.Command{
		Use: "list",
		Short: "List folder mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())

			for _, m := range app.FolderMap.All() {
				fmt.Printf("%s\t%s -> %s\tenabled=%v\n", m.Name, m.Local, m.Remote, m.Enabled)
			}

			return nil
		},
	}
}

func newMapUploadCmd() *cobra.Command {
	var dryRun, incremental bool

	cmd := &cobra.Command{
		Use: "upload <name>",
		Short: "Upload one mapping's local tree to the remote",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			opts := foldermap.UploadOptions{DryRun: dryRun, Incremental: incremental, Recursive: true}

			progress, err := app.Upload.Upload(cmd.Context(), args[0], opts, func(p foldermap.Progress) {
				if !flagQuiet {
					fmt.Printf("\r%s: %d/%d files", p.CurrentFile, p.UploadedFiles, p.TotalFiles)
				}
			})
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			fmt.Printf("\nuploaded %d/%d files (%d bytes)\n", progress.UploadedFiles, progress.TotalFiles, progress.UploadedBytes)

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview without transferring")
	cmd.Flags().BoolVar(&incremental, "incremental", true, "skip files already up to date remotely")

	return cmd
}
