package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vectorfs/internal/bus"
	"github.com/Aman-CERP/vectorfs/internal/config"
	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/daemon"
	"github.com/Aman-CERP/vectorfs/internal/dispatch"
	"github.com/Aman-CERP/vectorfs/internal/embed"
	"github.com/Aman-CERP/vectorfs/internal/fuseadapter"
	"github.com/Aman-CERP/vectorfs/internal/httpedge"
	"github.com/Aman-CERP/vectorfs/internal/isolation"
	"github.com/Aman-CERP/vectorfs/internal/pipeline"
	"github.com/Aman-CERP/vectorfs/internal/telemetry"
)

var (
	mountOwnerID string
	mountNoBus   bool
)

func newMountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount [mountpoint]",
		Short: "Mount a semantic virtual filesystem container",
		Args:  cobra.ExactArgs(1),
		RunE:  runMount,
	}
	cmd.Flags().StringVar(&mountOwnerID, "owner", "default", "Owner ID for the mounted container")
	cmd.Flags().BoolVar(&mountNoBus, "no-bus", false, "Skip connecting to the message bus")
	return cmd
}

func runMount(cobraCmd *cobra.Command, args []string) error {
	mountpoint := args[0]
	ctx := cobraCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	remoteCfg := embed.DefaultRemoteConfig()
	remoteCfg.Model = cfg.Embeddings.Model
	remoteCfg.Dimensions = cfg.Embeddings.Dimensions
	remoteCfg.BatchSize = cfg.Embeddings.BatchSize
	if cfg.Embeddings.OllamaHost != "" {
		remoteCfg.Host = cfg.Embeddings.OllamaHost
	}

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(ctx, provider, remoteCfg)
	if err != nil {
		slog.Warn("remote embedder unavailable, falling back to static embedder", slog.String("error", err.Error()))
		dims := cfg.Embeddings.Dimensions
		if dims <= 0 {
			dims = 256
		}
		embedder = embed.NewStaticEmbedder(dims)
	}

	manager := container.NewManager(embedder)
	dataDir, err := os.MkdirTemp("", "vectorfs-data-*")
	if err != nil {
		return fmt.Errorf("failed to create container data directory: %w", err)
	}

	c, err := manager.CreateAndRegister(container.Config{
		ID:       mountOwnerID + "-root",
		OwnerID:  mountOwnerID,
		Label:    "root",
		DataPath: dataDir,
		Budget: isolation.Budget{
			MemoryCapacity: cfg.Containers.DefaultMemoryCapacity,
			StorageQuota:   cfg.Containers.DefaultStorageQuota,
			MaxOpenFiles:   cfg.Containers.DefaultMaxOpenFiles,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register container: %w", err)
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	metrics, closeMetrics, err := newQueryMetrics()
	if err != nil {
		slog.Warn("query telemetry unavailable, continuing without it", slog.String("error", err.Error()))
		metrics, closeMetrics = nil, func() {}
	}
	defer closeMetrics()

	d := dispatch.New(manager)
	dispatch.RegisterDefaultRoutes(d, metrics)

	var msgBus *bus.Bus
	if !mountNoBus {
		msgBus, err = bus.Connect(bus.Config{
			URL:           cfg.Bus.URL,
			MaxRetries:    cfg.Bus.MaxRetries,
			RetryInterval: cfg.Bus.RetryInterval,
		})
		if err != nil {
			slog.Warn("message bus unavailable, continuing without it", slog.String("error", err.Error()))
			msgBus = nil
		} else {
			defer msgBus.Close()
		}
	}

	if msgBus != nil {
		notify := pipeline.New(
			pipeline.NewEmbedderStage(embedder),
			pipeline.NewCompressorStage(),
			pipeline.NewIPCPublisherStage(&pipeline.BusPublisher{Bus: msgBus, Subject: "vectorfs.file.indexed"}),
		)
		defer notify.Close()
		c.SetNotifyPipeline(notify)
	}

	edge := httpedge.New(d, []httpedge.RouteBinding{
		{Method: http.MethodPost, Pattern: "/container/create", DispatchVerb: dispatch.VerbPOST, DispatchPath: "container/create"},
		{Method: http.MethodGet, Pattern: "/container/files", DispatchVerb: dispatch.VerbGET, DispatchPath: "container/files"},
		{Method: http.MethodDelete, Pattern: "/file/delete", DispatchVerb: dispatch.VerbDELETE, DispatchPath: "file/delete"},
		{Method: http.MethodPost, Pattern: "/file/create", DispatchVerb: dispatch.VerbPOST, DispatchPath: "file/create"},
		{Method: http.MethodPost, Pattern: "/search/semantic", DispatchVerb: dispatch.VerbPOST, DispatchPath: "search/semantic"},
	})
	httpServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: edge}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http edge server stopped", slog.String("error", err.Error()))
		}
	}()

	pidCfg := daemon.DefaultConfig()
	if err := pidCfg.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}
	pidFile := daemon.NewPIDFile(pidCfg.PIDPath)
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	defer pidFile.Remove()

	root := fuseadapter.NewRoot(c)
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: cfg.Mount.AllowOther,
			Debug:      false,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mount filesystem at %s: %w", mountpoint, err)
	}

	slog.Info("vectorfsd mounted", slog.String("mountpoint", mountpoint), slog.String("listen_addr", cfg.Server.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down vectorfsd")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), pidCfg.ShutdownGracePeriod)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := server.Unmount(); err != nil {
		slog.Error("failed to unmount cleanly", slog.String("error", err.Error()))
	}
	if err := c.Stop(); err != nil {
		slog.Error("failed to stop container cleanly", slog.String("error", err.Error()))
	}

	return nil
}

// newQueryMetrics opens the SQLite-backed query metrics store alongside
// the daemon's PID file and returns a collector ready for
// search/semantic to record into. The returned closer flushes and
// closes the underlying database; call it even when metrics is nil.
func newQueryMetrics() (*telemetry.QueryMetrics, func(), error) {
	pidCfg := daemon.DefaultConfig()
	if err := pidCfg.EnsureDir(); err != nil {
		return nil, func() {}, fmt.Errorf("failed to create daemon directory: %w", err)
	}

	dbPath := filepath.Join(filepath.Dir(pidCfg.PIDPath), "telemetry.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("failed to init telemetry schema: %w", err)
	}

	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("failed to create telemetry store: %w", err)
	}

	metrics := telemetry.NewQueryMetrics(store)
	closer := func() {
		if err := metrics.Close(); err != nil {
			slog.Error("failed to close query metrics", slog.String("error", err.Error()))
		}
		_ = db.Close()
	}
	return metrics, closer, nil
}
