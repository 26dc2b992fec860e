// Package currency converts amounts between the supported currencies using
// an exchange-rate table fetched from a live provider and cached in-process.
package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// RateTable maps target currencies to the value of one unit of Base
type RateTable struct {
	Base      entity.Currency                     `json:"base"`
	Rates     map[entity.Currency]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                           `json:"fetched_at"`
}

// Rate returns the rate from Base to the target currency
func (t *RateTable) Rate(to entity.Currency) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	if to == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[to]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// RateProvider fetches the current rate table for a base currency
type RateProvider interface {
	FetchRates(ctx context.Context, base entity.Currency) (*RateTable, error)
}

// StaticProvider serves fixed tables. Useful for tests and offline setups.
type StaticProvider map[entity.Currency]map[entity.Currency]decimal.Decimal

// FetchRates implements RateProvider
func (p StaticProvider) FetchRates(ctx context.Context, base entity.Currency) (*RateTable, error) {
	rates, ok := p[base]
	if !ok {
		return nil, &UnknownBaseError{Base: base}
	}
	copied := make(map[entity.Currency]decimal.Decimal, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &RateTable{Base: base, Rates: copied, FetchedAt: time.Now()}, nil
}

// UnknownBaseError is returned when a provider has no table for a base
type UnknownBaseError struct {
	Base entity.Currency
}

func (e *UnknownBaseError) Error() string {
	return "no exchange rates for base currency " + string(e.Base)
}
