// Package summary aggregates expenses into per-status totals in a display
// currency.
package summary

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/currency"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// Converter converts a single amount between currencies
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to entity.Currency) (currency.Conversion, error)
}

// StatusTotal is the count and converted total of expenses in one status
type StatusTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// CurrencyBreakdown sums expenses by the currency they were incurred in
type CurrencyBreakdown struct {
	Currency string          `json:"currency"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// RawAmount is an amount that could not be converted and is reported in
// its original currency
type RawAmount struct {
	Currency string               `json:"currency"`
	Status   entity.ExpenseStatus `json:"status"`
	Amount   decimal.Decimal      `json:"amount"`
}

// Summary is the aggregate view of a set of expenses. Totals only include
// converted amounts; anything left out is listed in Unconverted.
type Summary struct {
	Currency    entity.Currency     `json:"currency"`
	Approved    StatusTotal         `json:"approved"`
	Pending     StatusTotal         `json:"pending"`
	Rejected    StatusTotal         `json:"rejected"`
	GrandTotal  decimal.Decimal     `json:"grand_total"`
	ByCurrency  []CurrencyBreakdown `json:"by_currency"`
	Unconverted []RawAmount         `json:"unconverted,omitempty"`
	Stale       bool                `json:"stale"`
	Notices     []string            `json:"notices,omitempty"`
}

// Complete returns true if every amount was converted with fresh rates
func (s *Summary) Complete() bool {
	return !s.Stale && len(s.Unconverted) == 0
}

type groupKey struct {
	currency entity.Currency
	label    string
	status   entity.ExpenseStatus
}

// Summarize computes the totals of expenses in display. Amounts are summed
// per currency and status before conversion so each group is converted
// once, making the result independent of expense order. Rate problems
// never fail the computation; the only error is an invalid display
// currency.
func Summarize(ctx context.Context, conv Converter, expenses []*entity.TravelExpense, display entity.Currency) (*Summary, error) {
	if !display.IsSupported() {
		return nil, errs.NewValidationError("invalid display currency").
			Add("currency", "must be one of the supported currencies")
	}

	s := &Summary{
		Currency:   display,
		Approved:   StatusTotal{Total: decimal.Zero},
		Pending:    StatusTotal{Total: decimal.Zero},
		Rejected:   StatusTotal{Total: decimal.Zero},
		GrandTotal: decimal.Zero,
		ByCurrency: []CurrencyBreakdown{},
	}

	groups := map[groupKey]decimal.Decimal{}
	breakdown := map[string]*CurrencyBreakdown{}
	for _, e := range expenses {
		bucket := s.bucket(e.Status)
		if bucket == nil {
			continue
		}
		bucket.Count++

		key := groupKey{currency: e.Currency, label: e.CurrencyLabel(), status: e.Status}
		groups[key] = groups[key].Add(e.Amount)

		b, ok := breakdown[key.label]
		if !ok {
			b = &CurrencyBreakdown{Currency: key.label, Total: decimal.Zero}
			breakdown[key.label] = b
		}
		b.Count++
		b.Total = b.Total.Add(e.Amount)
	}

	notices := map[string]bool{}
	for _, key := range sortedKeys(groups) {
		amount := groups[key]
		c, err := conv.Convert(ctx, amount, key.currency, display)
		if err != nil || !c.Converted {
			s.Unconverted = append(s.Unconverted, RawAmount{Currency: key.label, Status: key.status, Amount: amount})
			if err != nil {
				notices[err.Error()] = true
			} else if c.Notice != "" {
				notices[c.Notice] = true
			}
			continue
		}
		if c.Stale {
			s.Stale = true
			notices[currency.NoticeStale] = true
		}
		bucket := s.bucket(key.status)
		bucket.Total = bucket.Total.Add(c.Amount)
	}

	s.GrandTotal = s.Approved.Total.Add(s.Pending.Total)

	for _, b := range breakdown {
		s.ByCurrency = append(s.ByCurrency, *b)
	}
	sort.Slice(s.ByCurrency, func(i, j int) bool { return s.ByCurrency[i].Currency < s.ByCurrency[j].Currency })

	for n := range notices {
		s.Notices = append(s.Notices, n)
	}
	sort.Strings(s.Notices)

	return s, nil
}

func (s *Summary) bucket(status entity.ExpenseStatus) *StatusTotal {
	switch status {
	case entity.ExpenseStatusApproved:
		return &s.Approved
	case entity.ExpenseStatusPending:
		return &s.Pending
	case entity.ExpenseStatusRejected:
		return &s.Rejected
	}
	return nil
}

func sortedKeys(groups map[groupKey]decimal.Decimal) []groupKey {
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].label != keys[j].label {
			return keys[i].label < keys[j].label
		}
		return keys[i].status < keys[j].status
	})
	return keys
}
