package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/uploader"
)

func newUploadCmd() *cobra.Command {
	var destination string
	var priority int32

	cmd := &cobra.Command{
		Use: "upload <file>...",
		Short: "Classify files against upload rules and enqueue them",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			rules := []uploader.Rule{
				{ID: "images", Kind: uploader.ByExtension, Pattern: "jpg,jpeg,png,gif", Destination: "/images", Enabled: true},
				{ID: "large", Kind: uploader.BySize, Pattern: "100-999999", Destination: "/large", Enabled: true},
			}

			destinations := []string{destination}
			if destination == "" {
				destinations = nil
			}

			batch, err := app.Uploader.StartUpload(cmd.Context(), args, destinations, rules, priority)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			return watchBatch(batch)
		},
	}

	cmd.Flags().StringVar(&destination, "dest", "", "fallback remote destination for files matching no rule")
	cmd.Flags().Int32Var(&priority, "priority", 0, "queue priority, higher runs first")

	return cmd
}

// watchBatch polls the batch's aggregate progress until every task reaches
// a terminal state, printing a byte-level progress bar in the meantime.
func watchBatch(batch *uploader.Batch) error {
	bar := newCLIProgress(int64(batch.Progress().TotalBytes), "uploading")

	for {
		p := batch.Progress()
		bar.set(int64(p.UploadedBytes))

		if p.Done() {
			break
		}

		time.Sleep(50 * time.Millisecond)
	}

	bar.finish()

	p := batch.Progress()
	if p.FailedFiles > 0 {
		return fmt.Errorf("upload: %d of %d files failed", p.FailedFiles, p.TotalFiles)
	}

	fmt.Printf("uploaded %d files\n", p.CompletedFiles)

	return nil
}
