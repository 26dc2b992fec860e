// Package container provides dependency injection and lifecycle management
// for the travel support service.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/dispatcher"
	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/application/service"
	"github.com/garyjia/travel-support/internal/config"
	"github.com/garyjia/travel-support/internal/currency"
	"github.com/garyjia/travel-support/internal/domain/validation"
	"github.com/garyjia/travel-support/internal/infrastructure/document"
	"github.com/garyjia/travel-support/internal/infrastructure/export"
	"github.com/garyjia/travel-support/internal/infrastructure/external/exchangerate"
	infraLark "github.com/garyjia/travel-support/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-support/internal/infrastructure/storage"
	"github.com/garyjia/travel-support/internal/infrastructure/worker"
	"github.com/garyjia/travel-support/pkg/database"
	"github.com/garyjia/travel-support/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// CurrencyBundle holds the rate cache and the converter in front of it.
type CurrencyBundle struct {
	Cache     *currency.RateCache
	Converter *currency.Service
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on the transaction-aware DB.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (service.Repositories, error) {
	if db == nil {
		return service.Repositories{}, fmt.Errorf("database is required")
	}

	return service.Repositories{
		Requests: repository.NewRequestRepository(db, logger),
		Expenses: repository.NewExpenseRepository(db, logger),
		Receipts: repository.NewReceiptRepository(db, logger),
		History:  repository.NewHistoryRepository(db, logger),
	}, nil
}

// ProvideStorage creates the receipt file storage.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	return storage.NewLocalFileStorage(cfg.Dir, cfg.BaseURL, logger), nil
}

// ProvideCurrency creates the live rate provider, its cache and the converter.
func ProvideCurrency(cfg *config.ExchangeRateConfig, logger *zap.Logger) *CurrencyBundle {
	provider := exchangerate.NewClient(exchangerate.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, logger.Named("exchangerate"))

	cache := currency.NewRateCache(provider, currency.CacheConfig{
		TTL:          cfg.TTL,
		RetryBackoff: cfg.RetryBackoff,
		FetchTimeout: cfg.Timeout,
	}, logger.Named("rates"))

	return &CurrencyBundle{
		Cache:     cache,
		Converter: currency.NewService(cache, logger.Named("currency")),
	}
}

// ProvideNotifier returns the Lark notifier when enabled, otherwise a
// notifier that only logs.
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.Notifier {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Lark notifications disabled, speaker messages will be logged")
		return &logNotifier{logger: logger.Named("notify")}
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		BaseURL:       cfg.BaseURL,
	}, logger.Named("lark"))
	return infraLark.NewNotifier(client, cfg.ReceiveIDType, logger.Named("lark"))
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger.Named("events"))))
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos      service.Repositories
	TxManager  port.TransactionManager
	Storage    port.FileStorage
	Currency   *CurrencyBundle
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Review     *config.ReviewConfig
	Logger     *zap.Logger
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Travel       service.TravelService
	Report       service.ReportService
	Notification service.NotificationService
}

// ProvideServices creates the application services and subscribes the
// notification service to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	kv := utils.NewKVLogger(deps.Logger.Named("service"))
	policy := validation.NewReceiptPolicy(deps.Review.MaxReceiptSize, document.NewPDFInspector(deps.Logger.Named("pdf")))

	travel := service.NewTravelService(
		deps.Repos,
		deps.TxManager,
		deps.Storage,
		policy,
		deps.Dispatcher,
		deps.Review.UploadTimeout,
		kv,
	)

	report := service.NewReportService(
		deps.Repos,
		deps.Currency.Converter,
		deps.Currency.Cache,
		export.NewExcelExporter(deps.Logger.Named("export")),
		deps.Review.Currency(),
		kv,
	)

	notification := service.NewNotificationService(deps.Notifier, kv)
	notification.Register(deps.Dispatcher)

	return &ServiceBundle{
		Travel:       travel,
		Report:       report,
		Notification: notification,
	}, nil
}

// ProvideWorkers creates the background workers.
func ProvideWorkers(cfg *config.ExchangeRateConfig, cache *currency.RateCache, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("worker"))
	manager.Register(worker.NewRateRefreshWorker(cache, cfg.RefreshInterval, cfg.Bases(), logger.Named("worker")))
	return manager
}

// logNotifier stands in for Lark when notifications are disabled
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) NotifySpeaker(ctx context.Context, speakerID, message string) error {
	n.logger.Info("Speaker notification",
		zap.String("speaker_id", speakerID),
		zap.String("message", message))
	return nil
}
