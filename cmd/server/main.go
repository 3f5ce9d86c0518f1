// Package main is the entry point for the inventory HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/auth"
	"github.com/vyrodovalexey/inventory-store/internal/config"
	"github.com/vyrodovalexey/inventory-store/internal/logging"
	"github.com/vyrodovalexey/inventory-store/internal/metrics"
	"github.com/vyrodovalexey/inventory-store/internal/server"
	"github.com/vyrodovalexey/inventory-store/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, logging.EncodingJSON)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("failed to read .env file", zap.Error(envErr))
	}

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("inventory_file", cfg.InventoryFile),
		zap.Int("low_stock_threshold", cfg.LowStockThreshold),
		zap.Bool("autosave", cfg.AutoSave),
		zap.String("auth_mode", cfg.AuthMode),
	)

	authenticator, err := createAuthenticator(cfg, logger)
	if err != nil {
		logger.Error("failed to create authenticator", zap.Error(err))
		return 1
	}

	inv, err := openInventory(cfg, logger)
	if err != nil {
		logger.Error("failed to load inventory", zap.String("path", cfg.InventoryFile), zap.Error(err))
		return 1
	}

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder(prometheus.DefaultRegisterer)
		recorder.Snapshot(inv.Len(), len(inv.LowItems(cfg.LowStockThreshold)))
	}

	srv := server.New(cfg, logger, inv, authenticator, recorder)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()
	srv.SetReady(true)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// openInventory loads the configured inventory file into a guarded store.
// A missing file yields an empty inventory.
func openInventory(cfg *config.Config, logger *zap.Logger) (*store.Guarded, error) {
	inv := store.NewGuarded(store.NewInventory(store.WithLogger(logger)))
	if err := inv.Load(cfg.InventoryFile); err != nil {
		return nil, err
	}

	logger.Info("inventory loaded",
		zap.String("path", cfg.InventoryFile),
		zap.Int("items", inv.Len()),
	)
	return inv, nil
}

// createAuthenticator creates an authenticator based on the config auth mode.
func createAuthenticator(
	cfg *config.Config,
	logger *zap.Logger,
) (auth.Authenticator, error) {
	switch cfg.AuthMode {
	case "none", "":
		logger.Info("authentication disabled")
		return nil, nil
	case "basic":
		logger.Info("authentication mode: basic auth")
		return auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
	case "apikey":
		logger.Info("authentication mode: API key")
		return auth.NewAPIKeyAuthenticator(cfg.APIKeys)
	case "multi":
		logger.Info("authentication mode: multi")
		return createMultiAuthenticator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.AuthMode)
	}
}

// createMultiAuthenticator creates a multi-method authenticator
// from the available auth configurations.
func createMultiAuthenticator(
	cfg *config.Config,
	logger *zap.Logger,
) (auth.Authenticator, error) {
	var authenticators []auth.Authenticator

	if cfg.BasicAuthUsers != "" {
		ba, err := auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
		if err != nil {
			return nil, fmt.Errorf("creating basic authenticator: %w", err)
		}
		authenticators = append(authenticators, ba)
		logger.Info("multi-auth: basic auth enabled")
	}

	if cfg.APIKeys != "" {
		ak, err := auth.NewAPIKeyAuthenticator(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("creating API key authenticator: %w", err)
		}
		authenticators = append(authenticators, ak)
		logger.Info("multi-auth: API key auth enabled")
	}

	if len(authenticators) == 0 {
		return nil, errors.New("multi auth mode requires at least one authenticator")
	}

	return auth.NewMultiAuthenticator(authenticators...), nil
}
