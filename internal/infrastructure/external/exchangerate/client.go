// Package exchangerate fetches live rate tables from an exchangerate-api
// compatible endpoint.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/currency"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// Default endpoints. The keyed API is used when an API key is configured.
const (
	DefaultKeyedBaseURL = "https://v6.exchangerate-api.com/v6"
	DefaultOpenBaseURL  = "https://open.er-api.com/v6"
	DefaultTimeout      = 10 * time.Second
)

// Config holds exchange-rate client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements currency.RateProvider
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new exchange-rate client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenBaseURL
		if cfg.APIKey != "" {
			baseURL = DefaultKeyedBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// latestResponse covers both the keyed and the open endpoint, which name
// the rate map differently
type latestResponse struct {
	Result             string                     `json:"result"`
	ErrorType          string                     `json:"error-type"`
	BaseCode           string                     `json:"base_code"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	ConversionRates    map[string]decimal.Decimal `json:"conversion_rates"`
	Rates              map[string]decimal.Decimal `json:"rates"`
}

// FetchRates returns the latest table for base, restricted to the
// supported currencies. Failures are retriable network errors.
func (c *Client) FetchRates(ctx context.Context, base entity.Currency) (*currency.RateTable, error) {
	url := c.baseURL + "/latest/" + string(base)
	if c.apiKey != "" {
		url = c.baseURL + "/" + c.apiKey + "/latest/" + string(base)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewNetworkError("fetch exchange rates", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.NewNetworkError("fetch exchange rates", err)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errs.NewNetworkError("fetch exchange rates", fmt.Errorf("status %d", resp.StatusCode))
		}
		return nil, errs.NewNetworkError("fetch exchange rates", fmt.Errorf("decode response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || payload.Result != "success" {
		reason := payload.ErrorType
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		c.logger.Warn("Exchange rate API returned failure",
			zap.String("base", string(base)),
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", payload.ErrorType))
		return nil, errs.NewNetworkError("fetch exchange rates", fmt.Errorf("provider error: %s", reason))
	}

	raw := payload.ConversionRates
	if raw == nil {
		raw = payload.Rates
	}

	rates := make(map[entity.Currency]decimal.Decimal, len(entity.SupportedCurrencies))
	for _, cur := range entity.SupportedCurrencies {
		if r, ok := raw[string(cur)]; ok && r.IsPositive() {
			rates[cur] = r
		}
	}

	fetchedAt := time.Now().UTC()
	if payload.TimeLastUpdateUnix > 0 {
		fetchedAt = time.Unix(payload.TimeLastUpdateUnix, 0).UTC()
	}

	c.logger.Debug("Fetched exchange rates",
		zap.String("base", string(base)),
		zap.Int("rates", len(rates)))
	return &currency.RateTable{Base: base, Rates: rates, FetchedAt: fetchedAt}, nil
}

var _ currency.RateProvider = (*Client)(nil)
