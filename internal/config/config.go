package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	ExchangeRate ExchangeRateConfig `mapstructure:"exchange_rate"`
	Review       ReviewConfig       `mapstructure:"review"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
	// MaxUploadBytes caps a whole receipt upload request body
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds receipt file storage configuration
type StorageConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

// ExchangeRateConfig holds rate provider and cache configuration
type ExchangeRateConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	TTL             time.Duration `mapstructure:"ttl"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	WarmBases       []string      `mapstructure:"warm_bases"`
}

// ReviewConfig holds request and review behavior
type ReviewConfig struct {
	DefaultCurrency string        `mapstructure:"default_currency"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
	MaxReceiptSize  int64         `mapstructure:"max_receipt_size"`
}

// LarkConfig holds Lark notification configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	BaseURL       string `mapstructure:"base_url"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads an optional .env file, then the YAML config file, then
// environment overrides. An empty configPath runs on defaults and
// environment alone.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_bytes", 64<<20)

	v.SetDefault("database.path", "data/travel_support.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("storage.dir", "data/receipts")
	v.SetDefault("storage.base_url", "")

	v.SetDefault("exchange_rate.timeout", 10*time.Second)
	v.SetDefault("exchange_rate.ttl", time.Hour)
	v.SetDefault("exchange_rate.retry_backoff", time.Minute)
	v.SetDefault("exchange_rate.refresh_interval", time.Hour)
	v.SetDefault("exchange_rate.warm_bases", []string{"NOK"})

	v.SetDefault("review.default_currency", "NOK")
	v.SetDefault("review.upload_timeout", 30*time.Second)
	v.SetDefault("review.max_receipt_size", 10<<20)

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "open_id")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars lets credentials and deployment knobs come from the environment
func bindEnvVars(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("exchange_rate.api_key", "EXCHANGE_RATE_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if !supported(c.Review.DefaultCurrency) {
		return fmt.Errorf("review.default_currency %q is not supported", c.Review.DefaultCurrency)
	}
	for _, base := range c.ExchangeRate.WarmBases {
		if !supported(base) {
			return fmt.Errorf("exchange_rate.warm_bases: %q is not supported", base)
		}
	}
	if c.Review.MaxReceiptSize <= 0 {
		return fmt.Errorf("review.max_receipt_size must be positive")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	return nil
}

func supported(code string) bool {
	cur, ok := entity.ParseCurrency(code)
	return ok && cur.IsSupported()
}

// Currency returns the configured fallback display currency
func (r ReviewConfig) Currency() entity.Currency {
	cur, _ := entity.ParseCurrency(r.DefaultCurrency)
	return cur
}

// Bases returns the configured warm bases as currencies
func (e ExchangeRateConfig) Bases() []entity.Currency {
	bases := make([]entity.Currency, 0, len(e.WarmBases))
	for _, b := range e.WarmBases {
		cur, _ := entity.ParseCurrency(b)
		bases = append(bases, cur)
	}
	return bases
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
