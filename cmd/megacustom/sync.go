package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/smartsync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage smart sync profiles and run sync cycles",
	}

	cmd.AddCommand(newSyncProfileAddCmd())
	cmd.AddCommand(newSyncProfileListCmd())
	cmd.AddCommand(newSyncRunCmd())
	cmd.AddCommand(newSyncHistoryCmd())
	cmd.AddCommand(newSyncWatchCmd())

	return cmd
}

func newSyncProfileAddCmd() *cobra.Command {
	var direction, conflictPolicy string
	var deleteOrphans, watch bool

	cmd := &cobra.Command{
		Use:   "add-profile <name> <local-path> <remote-path>",
		Short: "Create a sync profile",
		Args:  cobra.ExactArgs(3),
		RunE:  func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			dir, err := parseDirection(direction)
			if err != nil {
				return err
			}

			policy, err := parseConflictPolicy(conflictPolicy)
			if err != nil {
				return err
			}

			p, err := app.Profiles.Create(smartsync.Profile{
				Name:           args[0],
				LocalPath:      args[1],
				RemotePath:     args[2],
				Direction:      dir,
				ConflictPolicy: policy,
				DeleteOrphans:  deleteOrphans,
				MTimeTolerance: 2 * time.Second,
				Watch:          watch,
			})
			if err != nil {
				return fmt.Errorf("creating profile: %w", err)
			}

			fmt.Printf("created profile %s (id=%s)\n", p.Name, p.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "bidirectional", "bidirectional|push-only|pull-only")
	cmd.Flags().StringVar(&conflictPolicy, "conflict-policy", "newer", "newer|larger|local|remote|keep-both|ask")
	cmd.Flags().BoolVar(&deleteOrphans, "delete-orphans", false, "propagate deletions instead of treating orphans as new")
	cmd.Flags().BoolVar(&watch, "watch", false, "mark this profile for watch-triggered sync (see 'sync watch')")

	return cmd
}

func newSyncProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List sync profiles",
		RunE:  func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())

			for _, p := range app.Profiles.All() {
				fmt.Printf("%s\t%s\t%s <-> %s\t%s/%s\n", p.ID, p.Name, p.LocalPath, p.RemotePath, p.Direction, p.ConflictPolicy)
			}

			return nil
		},
	}
}

func newSyncRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <profile-id>",
		Short: "Run one sync cycle for a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			entry, err := app.SmartSync.StartSync(cmd.Context(), args[0], func(p smartsync.Progress) {
				if !flagQuiet {
					fmt.Printf("\r%d/%d actions", p.ProcessedActions, p.TotalActions)
				}
			})
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			fmt.Printf("\nsync %s: %s (%d uploaded, %d downloaded, %d errors)\n",
				entry.ProfileName, entry.Status, entry.Uploaded, entry.Downloaded, entry.Errors)

			return nil
		},
	}
}

func newSyncHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <profile-id>",
		Short: "Show recent sync history for a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			for _, h := range app.SmartSync.History(args[0]) {
				fmt.Printf("%s\t%s\tuploaded=%d downloaded=%d errors=%d\n",
					h.Timestamp.Format(time.RFC3339), h.Status, h.Uploaded, h.Downloaded, h.Errors)
			}

			return nil
		},
	}
}

func newSyncWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <profile-id>",
		Short: "Watch a profile's local tree and run sync on change (blocks until interrupted)",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			p, ok := app.Profiles.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown profile %q", args[0])
			}

			if !p.Watch {
				return fmt.Errorf("profile %q was not created with --watch", p.Name)
			}

			fmt.Printf("watching %s for %s (ctrl-c to stop)\n", p.LocalPath, p.Name)

			return app.Watcher.Watch(cmd.Context(), p.ID)
		},
	}
}

func parseDirection(s string) (smartsync.Direction, error) {
	switch s {
	case "bidirectional":
		return smartsync.Bidirectional, nil
	case "push-only":
		return smartsync.PushOnly, nil
	case "pull-only":
		return smartsync.PullOnly, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func parseConflictPolicy(s string) (smartsync.ConflictPolicy, error) {
	switch s {
	case "newer":
		return smartsync.Newer, nil
	case "larger":
		return smartsync.Larger, nil
	case "local":
		return smartsync.Local, nil
	case "remote":
		return smartsync.Remote, nil
	case "keep-both":
		return smartsync.KeepBoth, nil
	case "ask":
		return smartsync.Ask, nil
	default:
		return 0, fmt.Errorf("unknown conflict policy %q", s)
	}
}
