// Package review decides individual expenses and computes the amounts a
// reviewer works with.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/travel"
	"github.com/garyjia/travel-support/internal/summary"
)

// Outcome describes an applied expense decision
type Outcome struct {
	ExpenseID      string
	PreviousStatus entity.ExpenseStatus
	NewStatus      entity.ExpenseStatus
	Notes          string
}

// Decide records a reviewer's decision on one expense. Re-deciding is an
// overwrite and is allowed while the request is submitted; afterwards
// expense states are frozen. Sibling expenses and the request status are
// never touched.
func Decide(req *entity.TravelSupportRequest, expenseID string, decision entity.Decision, notes string, reviewer entity.Actor, now time.Time) (*entity.TravelSupportRequest, Outcome, error) {
	const action = "review expense"
	if err := travel.AuthorizeReviewer(req, reviewer, action); err != nil {
		return nil, Outcome{}, err
	}
	if req.Status != entity.RequestStatusSubmitted {
		return nil, Outcome{}, errs.NewAuthorizationError(reviewer.ID, action,
			fmt.Sprintf("request is %s; expenses can only be reviewed while it is submitted", req.Status))
	}

	status, ok := decision.ExpenseStatus()
	if !ok {
		return nil, Outcome{}, errs.NewValidationError("invalid decision").
			Add("decision", fmt.Sprintf("must be %q or %q", entity.DecisionApprove, entity.DecisionReject))
	}
	if req.FindExpense(expenseID) < 0 {
		return nil, Outcome{}, fmt.Errorf("expense %s: %w", expenseID, errs.ErrNotFound)
	}

	next := req.Clone()
	expense := next.Expense(expenseID)
	out := Outcome{
		ExpenseID:      expenseID,
		PreviousStatus: expense.Status,
		NewStatus:      status,
		Notes:          strings.TrimSpace(notes),
	}

	expense.Status = status
	expense.ReviewNotes = out.Notes
	expense.ReviewedBy = reviewer.ID
	expense.ReviewedAt = &now
	expense.UpdatedAt = now
	next.UpdatedAt = now
	return next, out, nil
}

// Amount is a reviewer-facing total with the caveats of its computation
type Amount struct {
	Value       decimal.Decimal     `json:"value"`
	Currency    entity.Currency     `json:"currency"`
	Overridden  bool                `json:"overridden"`
	Stale       bool                `json:"stale"`
	Unconverted []summary.RawAmount `json:"unconverted,omitempty"`
	Notices     []string            `json:"notices,omitempty"`
}

// Engine computes review totals through a currency converter
type Engine struct {
	converter summary.Converter
}

// NewEngine creates a review engine
func NewEngine(converter summary.Converter) *Engine {
	return &Engine{converter: converter}
}

// TotalReimbursable sums approved and pending expenses in target. It is
// advisory and may differ from the approved amount.
func (e *Engine) TotalReimbursable(ctx context.Context, req *entity.TravelSupportRequest, target entity.Currency) (Amount, error) {
	s, err := summary.Summarize(ctx, e.converter, req.Expenses, target)
	if err != nil {
		return Amount{}, err
	}
	return fromSummary(s, s.GrandTotal, entity.ExpenseStatusApproved, entity.ExpenseStatusPending), nil
}

// ApprovedAmount returns the override when one was set at approval,
// converted from the request's preferred currency into target. Without an
// override it is the sum of approved expenses.
func (e *Engine) ApprovedAmount(ctx context.Context, req *entity.TravelSupportRequest, target entity.Currency) (Amount, error) {
	if req.ApprovedAmount.Valid {
		return e.override(ctx, req, target)
	}

	s, err := summary.Summarize(ctx, e.converter, req.Expenses, target)
	if err != nil {
		return Amount{}, err
	}
	return fromSummary(s, s.Approved.Total, entity.ExpenseStatusApproved), nil
}

func (e *Engine) override(ctx context.Context, req *entity.TravelSupportRequest, target entity.Currency) (Amount, error) {
	from := req.BankingDetails.PreferredCurrency
	if !from.IsSupported() {
		from = target
	}

	c, err := e.converter.Convert(ctx, req.ApprovedAmount.Decimal, from, target)
	if err != nil {
		return Amount{}, err
	}

	out := Amount{Value: c.Amount, Currency: target, Overridden: true, Stale: c.Stale}
	if !c.Converted {
		out.Value = decimal.Zero
		out.Unconverted = []summary.RawAmount{{Currency: string(from), Status: entity.ExpenseStatusApproved, Amount: c.Original}}
	}
	if c.Notice != "" {
		out.Notices = []string{c.Notice}
	}
	return out, nil
}

// fromSummary keeps only the unconverted amounts counted in value
func fromSummary(s *summary.Summary, value decimal.Decimal, counted ...entity.ExpenseStatus) Amount {
	var unconverted []summary.RawAmount
	for _, raw := range s.Unconverted {
		for _, status := range counted {
			if raw.Status == status {
				unconverted = append(unconverted, raw)
			}
		}
	}
	return Amount{
		Value:       value,
		Currency:    s.Currency,
		Stale:       s.Stale,
		Unconverted: unconverted,
		Notices:     s.Notices,
	}
}
