package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/config"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/export"
	"github.com/alfredjeanlab/nodegraph/internal/idgen"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
	"github.com/alfredjeanlab/nodegraph/internal/server"
	"github.com/alfredjeanlab/nodegraph/internal/watch"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the editor server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for flag, key := range map[string]string{
			"addr":     "http_addr",
			"engine":   "engine_url",
			"catalog":  "catalog_file",
			"workflow": "workflow_file",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				if err := cfg.Set(key, v); err != nil {
					return err
				}
			}
		}
		return serve(cfg)
	},
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func serve(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientID, err := idgen.ClientID()
	if err != nil {
		return err
	}

	// Event publishers.
	publisher, err := newPublisher(cfg, clientID, logger)
	if err != nil {
		return err
	}

	// Catalog source: a saved dump wins over the live engine. Only the
	// catalog read is bounded; submissions wait for the engine.
	engine := client.NewHTTPEngine(cfg.EngineURL, nil)
	var src catalog.Source = catalog.HTTPSource{Engine: engine, Timeout: 30 * time.Second}
	if cfg.CatalogFile != "" {
		src = catalog.FileSource{Path: cfg.CatalogFile}
		logger.Info("catalog from file", "path", cfg.CatalogFile)
	}
	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		publisher.Close()
		return fmt.Errorf("locale: %w", err)
	}
	view, err := editor.ParseViewMode(cfg.InitialView)
	if err != nil {
		publisher.Close()
		return err
	}

	metrics := server.NewMetrics()
	frames := pipeline.NewFrameLoop(cfg.FrameInterval.Duration, logger)
	go frames.Run(ctx)

	session, err := editor.Open(ctx, src,
		editor.WithLogger(logger),
		editor.WithEngine(engine),
		editor.WithPublisher(publisher),
		editor.WithScheduler(frames),
		editor.WithObserver(metrics),
		editor.WithClientID(clientID),
		editor.WithInitialView(view),
		editor.WithCatalogOptions(catalog.WithLocale(locale)),
	)
	if err != nil {
		publisher.Close()
		return err
	}

	dests := newDestinations(ctx, cfg, logger)
	srv := server.New(session,
		server.WithLogger(logger),
		server.WithDestinations(dests...),
		server.WithMetrics(metrics),
	)
	defer srv.Close()

	// Watch the workflow file.
	var watcher *watch.Watcher
	if cfg.WorkflowFile != "" {
		watcher = watch.New(cfg.WorkflowFile, session,
			watch.WithDebounce(cfg.WatchDebounce.Duration),
			watch.WithLogger(logger),
		)
		if err := watcher.Start(); err != nil {
			logger.Error("workflow watcher not started", "path", cfg.WorkflowFile, "err", err)
			watcher = nil
		} else {
			logger.Info("watching workflow file", "path", cfg.WorkflowFile)
		}
	}

	// Periodic export.
	var scheduler *export.Scheduler
	if cfg.ExportInterval.Duration > 0 && len(dests) > 0 {
		source := func() []byte { return []byte(session.Text()) }
		scheduler = export.NewScheduler(source, dests, cfg.ExportInterval.Duration, logger)
		scheduler.Start()
		logger.Info("export scheduler started", "interval", cfg.ExportInterval.Duration)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "auth", cfg.AuthToken != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("nodegraph server started", "client_id", clientID, "view", view)

	// Wait for SIGINT or SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case serveErr = <-errCh:
		logger.Error("HTTP server error", "err", serveErr)
	}

	// Graceful shutdown.
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("stopping watcher", "err", err)
		}
	}
	if scheduler != nil {
		scheduler.Stop()
		logger.Info("export scheduler stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	cancel()
	if err := publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	logger.Info("shutdown complete")
	return serveErr
}

// newPublisher connects every configured event bus. With none configured
// events are dropped.
func newPublisher(cfg *config.Config, clientID string, logger *slog.Logger) (events.Publisher, error) {
	var pubs []events.Publisher
	if cfg.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.NATSURL, clientID)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		pubs = append(pubs, p)
		logger.Info("NATS events enabled", "nats_url", cfg.NATSURL)
	}
	if cfg.MQTTURL != "" {
		p, err := events.NewMQTTPublisher(cfg.MQTTURL, clientID)
		if err != nil {
			for _, q := range pubs {
				q.Close()
			}
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		pubs = append(pubs, p)
		logger.Info("MQTT events enabled", "mqtt_url", cfg.MQTTURL)
	}
	if len(pubs) == 0 {
		logger.Info("events disabled (NODEGRAPH_NATS_URL and NODEGRAPH_MQTT_URL not set)")
	}
	return events.Combine(pubs...), nil
}

// newDestinations builds the export destinations. A destination that cannot
// be set up is logged and skipped.
func newDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []export.Destination {
	var dests []export.Destination
	if cfg.ExportFile != "" {
		dests = append(dests, export.FileDestination{Path: cfg.ExportFile})
		logger.Info("export file destination enabled", "path", cfg.ExportFile)
	}
	if cfg.ExportS3Bucket != "" {
		d, err := export.NewS3Destination(ctx, export.S3Options{
			Bucket:   cfg.ExportS3Bucket,
			Key:      cfg.ExportS3Key,
			Region:   cfg.ExportS3Region,
			Endpoint: cfg.ExportS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}
	if cfg.ExportGitRepo != "" {
		dests = append(dests, export.NewGitDestination(cfg.ExportGitRepo, cfg.ExportGitFile, cfg.ExportGitBranch))
		logger.Info("export git destination enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
	}
	return dests
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("engine", "", "engine URL (default from config)")
	serveCmd.Flags().String("catalog", "", "object_info JSON or YAML file to use instead of the engine")
	serveCmd.Flags().String("workflow", "", "workflow file to load and watch")
}
