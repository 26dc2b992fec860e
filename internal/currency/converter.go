package currency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// DisplayPlaces is the number of decimal places used when presenting amounts
const DisplayPlaces = 2

// Notices attached to conversions that did not produce an authoritative number
const (
	NoticeNotConvertible = "amount in a currency that cannot be converted; shown in its original currency"
	NoticeUnavailable    = "exchange rates are unavailable; amount shown in its original currency"
	NoticeMissingRate    = "no exchange rate for this currency pair; amount shown in its original currency"
	NoticeStale          = "exchange rates may not be accurate"
)

// Conversion is the outcome of converting one amount. When Converted is
// false, Amount equals Original and is still denominated in From.
type Conversion struct {
	Original  decimal.Decimal `json:"original"`
	Amount    decimal.Decimal `json:"amount"`
	From      entity.Currency `json:"from"`
	To        entity.Currency `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Converted bool            `json:"converted"`
	Stale     bool            `json:"stale"`
	Notice    string          `json:"notice,omitempty"`
}

// Display returns Amount rounded for presentation
func (c Conversion) Display() string {
	return c.Amount.StringFixed(DisplayPlaces)
}

// Service converts amounts using a RateCache
type Service struct {
	cache  *RateCache
	logger *zap.Logger
}

// NewService creates a conversion service backed by cache
func NewService(cache *RateCache, logger *zap.Logger) *Service {
	return &Service{cache: cache, logger: logger}
}

// Cache exposes the underlying rate cache
func (s *Service) Cache() *RateCache {
	return s.cache
}

// Convert converts amount from one currency to another. Rate failures never
// produce an error: the amount comes back unconverted with a notice, or
// converted with a cached rate flagged as stale. The only error is an
// unknown currency code.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to entity.Currency) (Conversion, error) {
	result := Conversion{
		Original: amount,
		Amount:   amount,
		From:     from,
		To:       to,
	}

	if !from.IsValid() || !to.IsValid() {
		return result, errs.NewValidationError("unsupported currency").
			Add("currency", fmt.Sprintf("cannot convert %s to %s", from, to))
	}

	if from == entity.CurrencyOther || to == entity.CurrencyOther {
		result.Notice = NoticeNotConvertible
		return result, nil
	}

	if from == to {
		result.Rate = decimal.NewFromInt(1)
		result.Converted = true
		return result, nil
	}

	table, stale, err := s.cache.Get(ctx, from)
	if err != nil {
		s.logger.Warn("Exchange rates unavailable, returning unconverted amount",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		result.Notice = NoticeUnavailable
		return result, nil
	}

	rate, ok := table.Rate(to)
	if !ok {
		result.Notice = NoticeMissingRate
		return result, nil
	}

	result.Rate = rate
	result.Amount = amount.Mul(rate)
	result.Converted = true
	if stale {
		result.Stale = true
		result.Notice = NoticeStale
	}

	return result, nil
}
