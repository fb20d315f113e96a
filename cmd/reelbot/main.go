package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/reelbot/reelbot/internal/api"
	"github.com/reelbot/reelbot/internal/bot"
	"github.com/reelbot/reelbot/internal/config"
	"github.com/reelbot/reelbot/internal/database"
	"github.com/reelbot/reelbot/internal/logger"
	"github.com/reelbot/reelbot/internal/picker"
	"github.com/reelbot/reelbot/internal/radarr"
	"github.com/reelbot/reelbot/internal/scheduler"
	"github.com/reelbot/reelbot/internal/session"
	"github.com/reelbot/reelbot/internal/telegram"
	"github.com/reelbot/reelbot/internal/tmdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reelbot:", err)
		os.Exit(1)
	}
}

func run() error {
	// Local .env files carry the secrets in development; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("Starting reelbot")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store := session.NewStore(db.Conn(), log.Logger)
	tmdbClient := tmdb.NewClient(cfg.TMDB, log.Logger)
	radarrClient := radarr.NewClient(cfg.Radarr, log.Logger)
	pickerService := picker.NewService(store, tmdbClient, radarrClient, log.Logger)

	tgClient := telegram.NewClient(cfg.Telegram.Token, log.Logger)
	frontend := bot.New(tgClient, pickerService, cfg.Telegram, log.Logger)
	poller := telegram.NewPoller(tgClient, frontend, cfg.Telegram.PollTimeout, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:         "session-prune",
		Name:       "Prune stale sessions",
		Cron:       cfg.Session.PruneCron,
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
			_, err := store.PruneStale(ctx, ttl)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register prune task: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	var healthServer *api.Server
	if cfg.Server.Enabled {
		healthServer = api.NewServer(store, log.Logger)
		go func() {
			if err := healthServer.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Health API stopped")
			}
		}()
	}

	if radarrClient.IsConfigured() {
		if err := radarrClient.Test(ctx); err != nil {
			log.Warn().Err(err).Msg("Radarr connectivity check failed")
		}
	}

	frontend.NotifyStarted(ctx)

	err = poller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("poller stopped: %w", err)
	}

	log.Info().Msg("Shutting down")
	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Health API shutdown failed")
		}
	}

	return nil
}
