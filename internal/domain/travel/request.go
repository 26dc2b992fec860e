// Package travel implements the travel support request aggregate. Every
// command takes the current snapshot and returns a new one; the input is
// never modified, so a failed command leaves the caller's state intact.
package travel

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

// New creates a draft request owned by speakerID
func New(id, speakerID, conferenceID string, now time.Time) (*entity.TravelSupportRequest, error) {
	v := errs.NewValidationError("invalid travel support request")
	if strings.TrimSpace(speakerID) == "" {
		v.Add("speaker_id", "is required")
	}
	if strings.TrimSpace(conferenceID) == "" {
		v.Add("conference_id", "is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return &entity.TravelSupportRequest{
		ID:           id,
		SpeakerID:    speakerID,
		ConferenceID: conferenceID,
		Expenses:     []*entity.TravelExpense{},
		Status:       entity.RequestStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdateBankingDetails replaces the payout details of a draft request
func UpdateBankingDetails(req *entity.TravelSupportRequest, actor entity.Actor, details entity.BankingDetails, now time.Time) (*entity.TravelSupportRequest, error) {
	const action = "update banking details"
	if err := AuthorizeOwner(req, actor, action); err != nil {
		return nil, err
	}
	if err := requireEditable(req, actor, action); err != nil {
		return nil, err
	}

	details = normalizeBanking(details)
	if err := validation.ValidateBankingDetails(details).OrNil(); err != nil {
		return nil, err
	}

	next := req.Clone()
	next.BankingDetails = details
	next.UpdatedAt = now
	return next, nil
}

// AddExpense appends a pending expense to a draft request. Receipts are
// not required yet; submission re-validates.
func AddExpense(req *entity.TravelSupportRequest, actor entity.Actor, expenseID string, in entity.ExpenseInput, now time.Time) (*entity.TravelSupportRequest, *entity.TravelExpense, error) {
	const action = "add expense"
	if err := AuthorizeOwner(req, actor, action); err != nil {
		return nil, nil, err
	}
	if err := requireEditable(req, actor, action); err != nil {
		return nil, nil, err
	}

	in = normalizeExpense(in)
	if err := validation.ValidateExpenseInput(in).OrNil(); err != nil {
		return nil, nil, err
	}

	expense := &entity.TravelExpense{
		ID:        expenseID,
		RequestID: req.ID,
		Receipts:  []entity.Receipt{},
		Status:    entity.ExpenseStatusPending,
		CreatedAt: now,
	}
	applyInput(expense, in, now)

	next := req.Clone()
	next.Expenses = append(next.Expenses, expense)
	next.UpdatedAt = now
	return next, expense.Clone(), nil
}

// UpdateExpense replaces the editable fields of a pending expense
func UpdateExpense(req *entity.TravelSupportRequest, actor entity.Actor, expenseID string, in entity.ExpenseInput, now time.Time) (*entity.TravelSupportRequest, *entity.TravelExpense, error) {
	const action = "update expense"
	next, expense, err := editableExpense(req, actor, expenseID, action)
	if err != nil {
		return nil, nil, err
	}

	in = normalizeExpense(in)
	if err := validation.ValidateExpenseInput(in).OrNil(); err != nil {
		return nil, nil, err
	}

	applyInput(expense, in, now)
	next.UpdatedAt = now
	return next, expense.Clone(), nil
}

// DeleteExpense removes a pending expense from a draft request. Expenses
// of submitted requests are never deleted.
func DeleteExpense(req *entity.TravelSupportRequest, actor entity.Actor, expenseID string, now time.Time) (*entity.TravelSupportRequest, *entity.TravelExpense, error) {
	const action = "delete expense"
	next, expense, err := editableExpense(req, actor, expenseID, action)
	if err != nil {
		return nil, nil, err
	}

	idx := next.FindExpense(expenseID)
	next.Expenses = append(next.Expenses[:idx], next.Expenses[idx+1:]...)
	next.UpdatedAt = now
	return next, expense, nil
}

// AttachReceipts adds already-stored receipts to a pending expense
func AttachReceipts(req *entity.TravelSupportRequest, actor entity.Actor, expenseID string, receipts []entity.Receipt, now time.Time) (*entity.TravelSupportRequest, error) {
	const action = "attach receipts"
	next, expense, err := editableExpense(req, actor, expenseID, action)
	if err != nil {
		return nil, err
	}

	for _, r := range receipts {
		r.ExpenseID = expense.ID
		expense.Receipts = append(expense.Receipts, r)
	}
	expense.UpdatedAt = now
	next.UpdatedAt = now
	return next, nil
}

// DeleteReceipt removes one receipt from a pending expense and returns it
// so the caller can release the stored file
func DeleteReceipt(req *entity.TravelSupportRequest, actor entity.Actor, expenseID, receiptID string, now time.Time) (*entity.TravelSupportRequest, *entity.Receipt, error) {
	const action = "delete receipt"
	next, expense, err := editableExpense(req, actor, expenseID, action)
	if err != nil {
		return nil, nil, err
	}

	idx := expense.FindReceipt(receiptID)
	if idx < 0 {
		return nil, nil, fmt.Errorf("receipt %s: %w", receiptID, errs.ErrNotFound)
	}
	removed := expense.Receipts[idx]
	expense.Receipts = append(expense.Receipts[:idx], expense.Receipts[idx+1:]...)
	expense.UpdatedAt = now
	next.UpdatedAt = now
	return next, &removed, nil
}

// editableExpense checks ownership, draft status and expense status, and
// returns a clone of req along with the clone's copy of the expense
func editableExpense(req *entity.TravelSupportRequest, actor entity.Actor, expenseID, action string) (*entity.TravelSupportRequest, *entity.TravelExpense, error) {
	if err := AuthorizeOwner(req, actor, action); err != nil {
		return nil, nil, err
	}
	if err := requireEditable(req, actor, action); err != nil {
		return nil, nil, err
	}
	if req.FindExpense(expenseID) < 0 {
		return nil, nil, fmt.Errorf("expense %s: %w", expenseID, errs.ErrNotFound)
	}

	next := req.Clone()
	expense := next.Expense(expenseID)
	if expense.Status != entity.ExpenseStatusPending {
		return nil, nil, errs.NewAuthorizationError(actor.ID, action,
			fmt.Sprintf("expense is %s; only pending expenses can be changed", expense.Status))
	}
	return next, expense, nil
}

func applyInput(e *entity.TravelExpense, in entity.ExpenseInput, now time.Time) {
	e.Category = in.Category
	e.Description = in.Description
	e.Amount = in.Amount
	e.Currency = in.Currency
	e.CustomCurrency = in.CustomCurrency
	e.ExpenseDate = in.ExpenseDate
	e.Location = in.Location
	e.UpdatedAt = now
}

func normalizeExpense(in entity.ExpenseInput) entity.ExpenseInput {
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if in.Currency == entity.CurrencyOther {
		in.CustomCurrency = entity.NormalizeCustomCurrency(in.CustomCurrency)
	} else {
		in.CustomCurrency = ""
	}
	return in
}

func normalizeBanking(b entity.BankingDetails) entity.BankingDetails {
	b.BeneficiaryName = strings.TrimSpace(b.BeneficiaryName)
	b.BankName = strings.TrimSpace(b.BankName)
	b.IBAN = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(b.IBAN), " ", ""))
	b.AccountNumber = strings.TrimSpace(b.AccountNumber)
	b.SwiftCode = strings.ToUpper(strings.TrimSpace(b.SwiftCode))
	b.Country = strings.TrimSpace(b.Country)
	return b
}
