package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/config"
	"github.com/garyjia/travel-support/internal/container"
	httpapi "github.com/garyjia/travel-support/internal/interfaces/http"
	"github.com/garyjia/travel-support/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file (empty for defaults and environment only)")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting travel support service",
		zap.String("address", cfg.Server.Address()),
		zap.String("default_currency", cfg.Review.DefaultCurrency),
		zap.Bool("lark_enabled", cfg.Lark.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Mode:            cfg.Server.Mode,
			MaxUploadBytes:  cfg.Server.MaxUploadBytes,
			MaxReceiptSize:  cfg.Review.MaxReceiptSize,
		},
		c.Services().Travel,
		c.Services().Report,
		func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		},
		utils.NewKVLogger(logger.Named("http")),
	)

	// blocks until a signal arrives, then drains in-flight requests
	return server.Start(ctx)
}
