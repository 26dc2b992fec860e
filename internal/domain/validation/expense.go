// Package validation holds the field rules for expenses, banking details
// and receipt files. Validators never mutate their input.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// Mode selects how strict expense validation is
type Mode int

const (
	// ModeDraft applies the rules required to save an expense
	ModeDraft Mode = iota
	// ModeSubmission also requires at least one receipt
	ModeSubmission
)

// Field names reported in validation errors
const (
	FieldCategory       = "category"
	FieldDescription    = "description"
	FieldAmount         = "amount"
	FieldCurrency       = "currency"
	FieldCustomCurrency = "custom_currency"
	FieldExpenseDate    = "expense_date"
	FieldReceipts       = "receipts"
)

// ValidateExpenseInput checks the speaker-editable fields of an expense.
// Every violated field is reported.
func ValidateExpenseInput(in entity.ExpenseInput) *errs.ValidationError {
	v := errs.NewValidationError("invalid expense")

	if !in.Category.IsValid() {
		v.Add(FieldCategory, fmt.Sprintf("unknown category %q", in.Category))
	}
	if strings.TrimSpace(in.Description) == "" {
		v.Add(FieldDescription, "is required")
	}
	if !in.Amount.IsPositive() {
		v.Add(FieldAmount, "must be greater than zero")
	}
	if in.ExpenseDate.IsZero() {
		v.Add(FieldExpenseDate, "is required")
	}
	if !in.Currency.IsValid() {
		v.Add(FieldCurrency, fmt.Sprintf("unsupported currency %q", in.Currency))
	} else if in.Currency == entity.CurrencyOther {
		if strings.TrimSpace(in.CustomCurrency) == "" {
			v.Add(FieldCustomCurrency, "is required when currency is OTHER")
		} else if !entity.IsCustomCurrencyCode(in.CustomCurrency) {
			v.Add(FieldCustomCurrency, "must be a 3-letter currency code")
		}
	}

	return v
}

// ValidateExpense checks a stored expense. In ModeSubmission an expense
// without receipts is incomplete.
func ValidateExpense(e *entity.TravelExpense, mode Mode) *errs.ValidationError {
	v := ValidateExpenseInput(entity.ExpenseInput{
		Category:       e.Category,
		Description:    e.Description,
		Amount:         e.Amount,
		Currency:       e.Currency,
		CustomCurrency: e.CustomCurrency,
		ExpenseDate:    e.ExpenseDate,
		Location:       e.Location,
	})

	if mode == ModeSubmission && len(e.Receipts) == 0 {
		v.Add(FieldReceipts, "at least one receipt is required")
	}

	return v
}

// Banking field names
const (
	FieldBeneficiaryName   = "beneficiary_name"
	FieldAccount           = "iban"
	FieldSwiftCode         = "swift_code"
	FieldCountry           = "country"
	FieldPreferredCurrency = "preferred_currency"
)

var swiftPattern = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)

// ValidateBankingDetails checks payout details. Either an IBAN or an
// account number is required.
func ValidateBankingDetails(b entity.BankingDetails) *errs.ValidationError {
	v := errs.NewValidationError("invalid banking details")

	if strings.TrimSpace(b.BeneficiaryName) == "" {
		v.Add(FieldBeneficiaryName, "is required")
	}
	if strings.TrimSpace(b.IBAN) == "" && strings.TrimSpace(b.AccountNumber) == "" {
		v.Add(FieldAccount, "an IBAN or an account number is required")
	}
	if swift := strings.ToUpper(strings.TrimSpace(b.SwiftCode)); swift != "" && !swiftPattern.MatchString(swift) {
		v.Add(FieldSwiftCode, "must be 8 or 11 characters")
	}
	if strings.TrimSpace(b.Country) == "" {
		v.Add(FieldCountry, "is required")
	}
	if !b.PreferredCurrency.IsSupported() {
		v.Add(FieldPreferredCurrency, fmt.Sprintf("unsupported currency %q", b.PreferredCurrency))
	}

	return v
}
