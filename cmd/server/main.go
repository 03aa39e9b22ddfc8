package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/LoanIngest/internal/catalog"
	"github.com/JonMunkholm/LoanIngest/internal/config"
	"github.com/JonMunkholm/LoanIngest/internal/ingest"
	"github.com/JonMunkholm/LoanIngest/internal/logging"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
	"github.com/JonMunkholm/LoanIngest/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Database.URL, storage.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate store", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to store", "backend", storage.Backend(cfg.Database.URL))

	cat := catalog.New(cfg.Ingest.ConfigDir)
	if clients, err := cat.Clients(); err != nil {
		slog.Warn("failed to list clients", "dir", cfg.Ingest.ConfigDir, "error", err)
	} else {
		slog.Info("clients configured", "dir", cfg.Ingest.ConfigDir, "count", len(clients))
		for _, name := range clients {
			if _, err := cat.Load(name); err != nil {
				slog.Warn("client config invalid", "client", name, "error", err)
			}
		}
	}

	service := ingest.NewService(cat, store, ingest.Options{
		Workers:       cfg.Ingest.Workers,
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		Timeout:       cfg.Ingest.Timeout,
	})

	server := web.NewServer(service, cfg.Server, cfg.Ingest.MaxFileSize)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigCh {
			if sig != syscall.SIGHUP {
				break
			}
			// SIGHUP re-reads client configs without a restart.
			cat.Reload()
			clients, err := cat.Clients()
			if err != nil {
				slog.Warn("failed to list clients after reload", "error", err)
				continue
			}
			slog.Info("client configs reloaded", "count", len(clients))
			for _, name := range clients {
				if _, err := cat.Load(name); err != nil {
					slog.Warn("client config invalid", "client", name, "error", err)
				}
			}
		}

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.Limiter().Active(); active > 0 {
			slog.Info("waiting for ingestions to complete", "active", active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}
