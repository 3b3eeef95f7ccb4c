package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/floorsync/floorsync/internal/api"
	"github.com/floorsync/floorsync/internal/config"
	"github.com/floorsync/floorsync/internal/event"
	"github.com/floorsync/floorsync/internal/liveness"
	"github.com/floorsync/floorsync/internal/settings"
	"github.com/floorsync/floorsync/internal/store"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the master LAN server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.Role != config.RoleMaster {
				return errors.New("serve runs on the master only; clients talk to a master through the desktop shell")
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	set := settings.Open(cfg.SettingsPath(), logger)
	s := store.Open(cfg.StorePath(), store.Options{
		JobPrefix:    cfg.JobPrefix,
		JobFloor:     cfg.JobFloor,
		ArchiveAfter: cfg.ArchiveAfter,
		Logger:       logger,
	})
	bus := event.New()
	tracker := liveness.New(cfg.LivenessWindow, bus)

	if set.LANKey() == "" {
		logger.Warn("no LAN key configured; every peer on this network can read and write jobs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := api.NewHandler(s, tracker, bus, version, cfg.Port())
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewServer(ctx, h, set.LANKey, logger, cfg.RateLimit),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the event stream stays open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	// Surface out-of-band replacements of the store file (manual restore,
	// hand edits) to connected UIs.
	go func() {
		err := s.Watch(ctx, func() {
			logger.Info("store file changed externally")
			bus.Publish(event.Event{Name: event.JobsUpdated, Source: "external", Action: event.ActionUpdate})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("store watcher stopped", "error", err)
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("master listening", "addr", cfg.ListenAddr, "store", s.Path())
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
