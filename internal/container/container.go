package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/dispatcher"
	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/application/service"
	"github.com/garyjia/travel-support/internal/config"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-support/internal/infrastructure/worker"
	"github.com/garyjia/travel-support/pkg/database"
)

// Container owns every long-lived component. Components are built in
// dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	conn         *database.DB
	db           *sqlite.DB
	repositories service.Repositories

	fileStorage port.FileStorage
	currency    *CurrencyBundle
	notifier    port.Notifier

	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	workers *worker.WorkerManager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes all components in dependency order:
// database, storage and external clients, dispatcher and services, workers.
// On failure everything built so far is released.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.start(ctx); err != nil {
		if cerr := c.teardown(); cerr != nil {
			c.logger.Error("Cleanup after failed start", zap.Error(cerr))
		}
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) start(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger.Named("db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	if c.repositories, err = ProvideRepositories(c.db, c.logger.Named("repo")); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	if c.fileStorage, err = ProvideStorage(&c.config.Storage, c.logger.Named("storage")); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.currency = ProvideCurrency(&c.config.ExchangeRate, c.logger)
	c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	c.logger.Info("Storage and external clients initialized")

	c.dispatcher = ProvideDispatcher(c.logger)
	c.services, err = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Storage:    c.fileStorage,
		Currency:   c.currency,
		Dispatcher: c.dispatcher,
		Notifier:   c.notifier,
		Review:     &c.config.Review,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(&c.config.ExchangeRate, c.currency.Cache, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.GetWorkerCount()))

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// waits for in-flight notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch {
	case c.conn == nil:
		set("database", ComponentHealth{Message: "not initialized"})
	default:
		if err := c.conn.Ping(); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.workers == nil {
		set("workers", ComponentHealth{Message: "not initialized"})
	} else {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	}

	// stale or missing rates degrade summaries but never block requests
	if c.currency != nil {
		msg := "no rates cached"
		if bases := c.currency.Cache.Bases(); len(bases) > 0 {
			msg = fmt.Sprintf("%d base(s) cached", len(bases))
		}
		status.Components["exchange_rates"] = ComponentHealth{Healthy: true, Message: msg}
	}

	return status
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Repositories returns all repositories.
func (c *Container) Repositories() service.Repositories {
	return c.repositories
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
