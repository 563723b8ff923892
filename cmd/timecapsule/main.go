// Time capsule daemon - temporal delivery of reminders, nudges, and capsules
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timecapsule/timecapsule/internal/api"
	"github.com/timecapsule/timecapsule/internal/config"
	"github.com/timecapsule/timecapsule/internal/delivery"
	"github.com/timecapsule/timecapsule/internal/logging"
	"github.com/timecapsule/timecapsule/internal/nudge"
	"github.com/timecapsule/timecapsule/internal/scheduler"
	"github.com/timecapsule/timecapsule/internal/storage"
)

var (
	configPath string
	dataDir    string
	port       int
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "timecapsule",
		Short: "Time capsule daemon - messages delivered at the right moment",
		RunE:  runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if debug || cfg.Features.DebugMode {
		logging.SetLevel(logging.DEBUG)
	}

	log := logging.Component("daemon")
	log.Info("starting time capsule daemon")

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// Open database
	db, err := storage.Open(storage.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Build delivery channels
	var channels []delivery.Channel
	if cfg.Features.EnableConsole {
		channels = append(channels, delivery.NewConsole(os.Stdout))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		channels = append(channels, delivery.NewWebhook(delivery.WebhookConfig{
			URL:   cfg.Webhook.URL,
			Token: cfg.Webhook.Token,
		}))
		log.Info("webhook delivery enabled: %s", cfg.Webhook.URL)
	}

	var hub *delivery.Hub
	if cfg.Features.EnableWebSocket {
		hub = delivery.NewHub()
		channels = append(channels, hub)
	}

	if len(channels) == 0 {
		log.Warn("no delivery channels configured, items will be marked delivered unseen")
	}

	// Scheduler loop
	sched := scheduler.New(scheduler.Config{
		Interval:       time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		ChannelTimeout: time.Duration(cfg.Scheduler.ChannelTimeoutSeconds) * time.Second,
	}, db, nil, channels...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)

	// Nudge planner
	planner := nudge.NewPlanner(db)

	// API server
	server := api.New(api.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		DB:        db,
		Scheduler: sched,
		Planner:   planner,
		Hub:       hub,
	})

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Stop(shutdownCtx)
		cancel()
	}()

	// Start server (blocks)
	return server.Start()
}
