package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "schedule",
		Short: "Manage scheduled tasks",
	}

	cmd.AddCommand(newScheduleAddCmd())
	cmd.AddCommand(newScheduleListCmd())
	cmd.AddCommand(newScheduleRemoveCmd())

	return cmd
}

func newScheduleAddCmd() *cobra.Command {
	var repeat string
	var runInSeconds int

	cmd := &cobra.Command{
		Use: "add <name> <mapping-name>",
		Short: "Schedule a recurring upload_mapping task",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			r, err := parseRepeat(repeat)
			if err != nil {
				return err
			}

			payload, err := json.Marshal(uploadMappingPayload{MappingName: args[1]})
			if err != nil {
				return err
			}

			t, err := app.Scheduler.AddTask(scheduler.Task{
				Name: args[0],
				Enabled: true,
				Repeat: r,
				NextRun: time.Now().Add(time.Duration(runInSeconds) * time.Second),
				ActionKind: "upload_mapping",
				ActionPayload: payload,
			})
			if err != nil {
				return fmt.Errorf("scheduling task: %w", err)
			}

			fmt.Printf("scheduled task %d (%s), next run at %s\n", t.ID, t.Name, t.NextRun.Format(time.RFC3339))

			return nil
		},
	}

	cmd.Flags().StringVar(&repeat, "repeat", "once", "once|hourly|daily|weekly")
	cmd.Flags().IntVar(&runInSeconds, "in", 0, "seconds from now until the first run")

	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use: "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())

			for _, t := range app.Scheduler.Tasks() {
				fmt.Printf("%d\t%s\tenabled=%v\tnext_run=%s\tlast_status=%s\n",
					t.ID, t.Name, t.Enabled, t.NextRun.Format(time.RFC3339), t.LastStatus)
			}

			return nil
		},
	}
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use: "remove <id>",
		Short: "Remove a scheduled task",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())

			var id uint64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			return app.Scheduler.RemoveTask(id)
		},
	}
}

func parseRepeat(s string) (scheduler.RepeatInterval, error) {
	switch s {
	case "once":
		return scheduler.Once, nil
	case "hourly":
		return scheduler.Hourly, nil
	case "daily":
		return scheduler.Daily, nil
	case "weekly":
		return scheduler.Weekly, nil
	default:
		return 0, fmt.Errorf("unknown repeat interval %q", s)
	}
}
