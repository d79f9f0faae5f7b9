package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/megacustom/core/internal/accounts"
	"github.com/megacustom/core/internal/cloudclient"
	"github.com/megacustom/core/internal/credstore"
	"github.com/megacustom/core/internal/events"
	"github.com/megacustom/core/internal/foldermap"
	"github.com/megacustom/core/internal/renamer"
	"github.com/megacustom/core/internal/scheduler"
	"github.com/megacustom/core/internal/searchindex"
	"github.com/megacustom/core/internal/smartsync"
	"github.com/megacustom/core/internal/transfer"
	"github.com/megacustom/core/internal/uploader"
)

// App bundles one instance of every engine, wired against a single
// offline demo Client (cloudclient.Fake backed by the real local
// filesystem) and a shared event bus. Each cobra command reaches into
// App rather than constructing its own dependencies.
type App struct {
	Logger *slog.Logger
	Bus    *events.Bus

	Client   *cloudclient.Fake
	Accounts *accounts.Registry
	Creds    *credstore.Store

	Transfer  *transfer.Scheduler
	Uploader  *uploader.Uploader
	FolderMap *foldermap.Store
	Upload    *foldermap.Uploader
	SmartSync *smartsync.Engine
	Profiles  *smartsync.ProfileStore
	Watcher   *smartsync.Watcher
	Index     *searchindex.Index
	Renamer   *renamer.Engine
	Scheduler *scheduler.Scheduler

	dataDir string
}

// newApp wires every subsystem against dataDir, the root under which
// this run persists its credentials, mappings, sync profiles, and
// scheduled tasks.
func newApp(dataDir string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}

	bus := events.New(logger)
	client := cloudclient.NewFakeWithOS()

	acctInstallSecret := []byte("megacustom-demo-install-secret-do-not-use-in-prod")

	credStore, err := credstore.New(filepath.Join(dataDir, "credentials"), acctInstallSecret, logger)
	if err != nil {
		return nil, err
	}

	acctRegistry := accounts.New(bus, logger)

	xferSched := transfer.New(client, bus, logger)

	folderStore := foldermap.New(filepath.Join(dataDir, "foldermap.json"))
	if err := folderStore.Load(); err != nil {
		return nil, err
	}

	profileStore := smartsync.NewProfileStore(filepath.Join(dataDir, "sync_profiles.json"))
	if err := profileStore.Load(); err != nil {
		return nil, err
	}

	taskStore := scheduler.NewStore(filepath.Join(dataDir, "tasks.json"))
	if err := taskStore.Load(); err != nil {
		return nil, err
	}

	syncEngine := smartsync.New(profileStore, client, xferSched, bus, logger)

	app := &App{
		Logger:   logger,
		Bus:      bus,
		Client:   client,
		Accounts: acctRegistry,
		Creds:    credStore,

		Transfer:  xferSched,
		Uploader:  uploader.New(xferSched, logger),
		FolderMap: folderStore,
		Upload:    foldermap.NewUploader(folderStore, client, xferSched, logger),
		SmartSync: syncEngine,
		Profiles:  profileStore,
		Watcher:   smartsync.NewWatcher(syncEngine, logger),
		Index:     searchindex.New(),
		Renamer:   renamer.New(client, logger),
		Scheduler: scheduler.New(taskStore, bus, logger, scheduler.DefaultCheckInterval),

		dataDir: dataDir,
	}

	app.registerSchedulerHandlers()

	// The transfer scheduler and task scheduler both run their own
	// admission/check loops for the life of the process; a one-shot CLI
	// command has no natural shutdown hook to stop them, so they run
	// against a background context and exit with the process.
	go xferSched.Run(context.Background())
	go app.Scheduler.Run(context.Background())

	return app, nil
}

// uploadMappingPayload is the ActionPayload shape for "upload_mapping"
// tasks: the name of a foldermap mapping to upload in full.
type uploadMappingPayload struct {
	MappingName string `json:"mapping_name"`
}

// registerSchedulerHandlers binds each ActionKind the thin CLI knows
// about to the engine that performs it, so tasks added via "schedule add"
// actually do something when their next_run comes due.
func (a *App) registerSchedulerHandlers() {
	a.Scheduler.RegisterHandler("upload_mapping", func(ctx context.Context, task scheduler.Task) error {
		var payload uploadMappingPayload
		if err := json.Unmarshal(task.ActionPayload, &payload); err != nil {
			return fmt.Errorf("decoding upload_mapping payload: %w", err)
		}

		_, err := a.Upload.Upload(ctx, payload.MappingName, foldermap.UploadOptions{Incremental: true, Recursive: true}, nil)

		return err
	})
}
