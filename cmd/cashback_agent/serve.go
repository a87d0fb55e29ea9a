package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cashback-scout/internal/db"
	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/metrics"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
	"github.com/jonathan/cashback-scout/internal/server"
	"github.com/jonathan/cashback-scout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the detection API for the browser extension",
	Long: "Starts an HTTP server exposing page detection, tab lifecycle, brand lookup and detection history. " +
		"Page views live in memory or Redis; history is kept when database.url is set.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	views, err := store.New(cfg.Store.Type, cfg.Store.RedisAddress, cfg.Store.RedisPassword, cfg.Store.RedisDB, cfg.Store.TTL)
	if err != nil {
		return err
	}
	defer func() { _ = views.Close() }()

	parts := orchestratorParts{
		store:    views,
		metrics:  metrics.New(),
		notifier: orchestrator.LogNotifier{Logger: logger},
	}

	var history server.DetectionLister
	if cfg.Database.URL != "" {
		database, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if cfg.Database.Migrate {
			if err := database.Migrate(ctx); err != nil {
				return err
			}
		}
		parts.history = database
		history = database
	}

	o, err := newOrchestrator(cfg, logger, parts)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Orchestrator: o,
		Source:       newSource(cfg, logger),
		Detections:   history,
		Metrics:      parts.metrics,
		Logger:       logger,
		Server:       cfg.Server,
		Auth:         cfg.Auth,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Log(logging.LevelInfo, "serve", "configuration loaded", map[string]any{
		"port":     cfg.Server.Port,
		"store":    cfg.Store.Type,
		"history":  history != nil,
		"auth":     cfg.Auth.Enabled,
		"registry": cfg.Registry.Location,
	})
	return srv.Start(ctx)
}
