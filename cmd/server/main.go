package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunangsur/modern-face-api/internal/api"
	"github.com/arunangsur/modern-face-api/internal/attest"
	"github.com/arunangsur/modern-face-api/internal/bus"
	"github.com/arunangsur/modern-face-api/internal/config"
	"github.com/arunangsur/modern-face-api/internal/db"
	"github.com/arunangsur/modern-face-api/internal/gallery"
	"github.com/arunangsur/modern-face-api/internal/notify"
)

func main() {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	slog.Info("starting face-api",
		"env", cfg.Env,
		"http_addr", cfg.HTTPAddr,
		"data_dir", cfg.DataDir,
		"match_threshold", cfg.MatchThreshold,
	)

	store, err := gallery.New(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open gallery", "data_dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	deps := api.Deps{Store: store}

	if cfg.DBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		d, err := db.Open(ctx, cfg.DBURL)
		cancel()
		if err != nil {
			slog.Error("failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		defer d.Close()
		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := d.Migrate(ctx)
			cancel()
			if err != nil {
				slog.Error("failed to migrate audit schema", "error", err)
				os.Exit(1)
			}
		}
		deps.DB = d
	}

	if cfg.NATSURL != "" {
		b, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer b.Close()
		deps.Bus = b
	}

	if cfg.AttestSeedB64 != "" {
		signer, err := attest.NewSigner(cfg.AttestSeedB64)
		if err != nil {
			slog.Error("failed to load attestation key", "error", err)
			os.Exit(1)
		}
		slog.Info("match attestations enabled", "issuer", signer.PublicKeyB64())
		deps.Signer = signer
	}

	if cfg.WebhookURL != "" {
		deps.Notifier = notify.NewClient(cfg.WebhookURL, cfg.WebhookSecret)
		slog.Info("webhook notifications enabled", "url", cfg.WebhookURL)
	}

	app := api.New(cfg, deps)

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		slog.Info("shutting down", "signal", s.String())
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
