package entity

import (
	"regexp"
	"strings"
)

// Currency is a supported ISO 4217 code, or OTHER for anything else
type Currency string

const (
	CurrencyNOK   Currency = "NOK"
	CurrencyUSD   Currency = "USD"
	CurrencyEUR   Currency = "EUR"
	CurrencyGBP   Currency = "GBP"
	CurrencySEK   Currency = "SEK"
	CurrencyDKK   Currency = "DKK"
	CurrencyOther Currency = "OTHER"
)

// SupportedCurrencies lists the convertible currencies in display order
var SupportedCurrencies = []Currency{
	CurrencyNOK,
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencySEK,
	CurrencyDKK,
}

var customCurrencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsSupported returns true for the fixed set of convertible currencies
func (c Currency) IsSupported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// IsValid returns true for supported currencies and OTHER
func (c Currency) IsValid() bool {
	return c == CurrencyOther || c.IsSupported()
}

// String returns the string representation of the currency
func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes a code, returning false if it is not a known value
func ParseCurrency(code string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	return c, c.IsValid()
}

// NormalizeCustomCurrency upper-cases and trims a free-text currency code
func NormalizeCustomCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCustomCurrencyCode reports whether code looks like a 3-letter currency code
func IsCustomCurrencyCode(code string) bool {
	return customCurrencyPattern.MatchString(NormalizeCustomCurrency(code))
}
