package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/megacustom/core/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagDataDir string
	flagDebug bool
	flagQuiet bool
)

// appContextKey is the context key under which the wired App is stored,
// giving every command a single construction point to read from.
type appContextKey struct{}

func appFrom(ctx context.Context) *App {
	app, _ := ctx.Value(appContextKey{}).(*App)

	return app
}

// newRootCmd builds the fully assembled command tree. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "megacustom",
		Short: "MegaCustom engine smoke-test CLI",
		Long: "Thin command-line harness exercising every MegaCustom engine against an offline demo backend.",
		Version: version,
		SilenceErrors: true,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			dataDir := flagDataDir
			if dataDir == "" {
				dataDir = config.DefaultDataDir()
			}

			if dataDir == "" {
				return fmt.Errorf("cannot determine data directory; pass --data-dir")
			}

			app, err := newApp(dataDir, logger)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cmd.SetContext(context.WithValue(ctx, appContextKey{}, app))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory for credentials, mappings, and task state (default: platform data dir)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newMapCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newScheduleCmd())

	return cmd
}

// buildLogger configures an slog.Logger from the CLI flags. --debug and
// --quiet are mutually exclusive (enforced by Cobra); the default level
// is Info.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagQuiet:
		level = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "megacustom: %v\n", err)
	os.Exit(1)
}
