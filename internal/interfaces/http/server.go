// Package http exposes the travel support services over a JSON REST API.
// It is a thin adapter: handlers bind input, call a service and map the
// result or error onto a response.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-support/internal/application/service"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthCheck reports whether the service can take traffic plus
// per-component detail
type HealthCheck func() (healthy bool, details interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Mode is the gin mode: release, debug or test
	Mode string
	// MaxUploadBytes caps the body of a receipt upload
	MaxUploadBytes int64
	// MaxReceiptSize is the per-file ceiling; larger parts are refused
	// without being read
	MaxReceiptSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Mode:            gin.ReleaseMode,
		MaxUploadBytes:  64 << 20,
		MaxReceiptSize:  validation.DefaultMaxReceiptSize,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	travelService service.TravelService,
	reportService service.ReportService,
	health HealthCheck,
	logger Logger,
) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(travelService, reportService, health, logger).
			WithUploadLimits(config.MaxUploadBytes, config.MaxReceiptSize),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if actor, ok := actorFrom(c); ok {
			kv = append(kv, "actor_id", actor.ID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", kv...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api", identityMiddleware())
	{
		requests := api.Group("/requests")
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.GET("/:id/history", h.GetHistory)
		requests.PUT("/:id/banking", h.UpdateBankingDetails)
		requests.POST("/:id/submit", h.Submit)
		requests.POST("/:id/status", h.UpdateStatus)
		requests.GET("/:id/summary", h.GetSummary)
		requests.GET("/:id/export", h.ExportRequest)

		requests.POST("/:id/expenses", h.AddExpense)
		requests.PUT("/:id/expenses/:expenseId", h.UpdateExpense)
		requests.DELETE("/:id/expenses/:expenseId", h.DeleteExpense)
		requests.POST("/:id/expenses/:expenseId/status", h.UpdateExpenseStatus)
		requests.POST("/:id/expenses/:expenseId/receipts", h.UploadReceipts)
		requests.GET("/:id/expenses/:expenseId/receipts/:receiptId", h.DownloadReceipt)
		requests.DELETE("/:id/expenses/:expenseId/receipts/:receiptId", h.DeleteReceipt)

		currency := api.Group("/currency")
		currency.GET("/convert", h.ConvertCurrency)
		currency.GET("/cache", h.CacheStatus)
		currency.DELETE("/cache", h.ClearCache)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
