package travel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/validation"
	"github.com/garyjia/travel-support/internal/domain/workflow"
)

// SubmitIncompleteMessage is the headline of a submission blocked by
// missing banking details or expenses
const SubmitIncompleteMessage = "add banking details and at least one expense"

// Transition describes a status change applied by a command, for the
// audit trail
type Transition struct {
	From   entity.RequestStatus
	To     entity.RequestStatus
	Action string
	Notes  string
}

// ApprovalInput carries the optional parts of an approval
type ApprovalInput struct {
	ApprovedAmount      decimal.NullDecimal
	ExpectedPaymentDate entity.Date
	ReviewNotes         string
}

// Submit moves a draft request to submitted. Every expense is re-validated
// with receipts required, so a stale client cannot force an invalid request
// through.
func Submit(ctx context.Context, req *entity.TravelSupportRequest, actor entity.Actor, now time.Time) (*entity.TravelSupportRequest, Transition, error) {
	const action = "submit request"
	if err := AuthorizeOwner(req, actor, action); err != nil {
		return nil, Transition{}, err
	}

	next := req.Clone()
	guards := workflow.Guards{Submit: func(context.Context) error { return submitEligible(next) }}
	t, err := fire(ctx, next, actor, workflow.TriggerSubmit, action, guards)
	if err != nil {
		return nil, Transition{}, err
	}

	next.SubmittedAt = &now
	next.UpdatedAt = now
	return next, t, nil
}

// Approve moves a submitted request to approved. A present ApprovedAmount
// overrides the sum of approved expenses. Without one, every expense must
// be decided first.
func Approve(ctx context.Context, req *entity.TravelSupportRequest, reviewer entity.Actor, in ApprovalInput, now time.Time) (*entity.TravelSupportRequest, Transition, error) {
	const action = "approve request"
	if err := AuthorizeReviewer(req, reviewer, action); err != nil {
		return nil, Transition{}, err
	}

	if in.ApprovedAmount.Valid && in.ApprovedAmount.Decimal.IsNegative() {
		return nil, Transition{}, errs.NewValidationError("invalid approval").
			Add("approved_amount", "must not be negative")
	}

	next := req.Clone()
	guards := workflow.Guards{Approve: func(context.Context) error {
		if in.ApprovedAmount.Valid {
			return nil
		}
		return undecidedExpenses(next)
	}}
	t, err := fire(ctx, next, reviewer, workflow.TriggerApprove, action, guards)
	if err != nil {
		return nil, Transition{}, err
	}

	next.ApprovedAmount = in.ApprovedAmount
	next.ExpectedPaymentDate = in.ExpectedPaymentDate
	next.ReviewNotes = strings.TrimSpace(in.ReviewNotes)
	next.ReviewedBy = reviewer.ID
	next.ReviewedAt = &now
	next.UpdatedAt = now
	t.Notes = next.ReviewNotes
	return next, t, nil
}

// Reject moves a submitted request to rejected. Notes are expected but not
// enforced.
func Reject(ctx context.Context, req *entity.TravelSupportRequest, reviewer entity.Actor, notes string, now time.Time) (*entity.TravelSupportRequest, Transition, error) {
	const action = "reject request"
	if err := AuthorizeReviewer(req, reviewer, action); err != nil {
		return nil, Transition{}, err
	}

	next := req.Clone()
	t, err := fire(ctx, next, reviewer, workflow.TriggerReject, action, workflow.Guards{})
	if err != nil {
		return nil, Transition{}, err
	}

	next.ReviewNotes = strings.TrimSpace(notes)
	next.ReviewedBy = reviewer.ID
	next.ReviewedAt = &now
	next.UpdatedAt = now
	t.Notes = next.ReviewNotes
	return next, t, nil
}

// MarkPaid records the payout of an approved request
func MarkPaid(ctx context.Context, req *entity.TravelSupportRequest, reviewer entity.Actor, now time.Time) (*entity.TravelSupportRequest, Transition, error) {
	const action = "mark request paid"
	if err := AuthorizeReviewer(req, reviewer, action); err != nil {
		return nil, Transition{}, err
	}

	next := req.Clone()
	t, err := fire(ctx, next, reviewer, workflow.TriggerMarkPaid, action, workflow.Guards{})
	if err != nil {
		return nil, Transition{}, err
	}

	next.PaidAt = &now
	next.UpdatedAt = now
	return next, t, nil
}

// fire runs trigger against a fresh machine seeded with next.Status and
// writes the resulting status back. A trigger that is not available from
// the current status is reported as an AuthorizationError; guard failures
// surface the guard's own error.
func fire(ctx context.Context, next *entity.TravelSupportRequest, actor entity.Actor, trigger workflow.Trigger, action string, g workflow.Guards) (Transition, error) {
	from := workflow.State(next.Status)
	if !from.IsValid() {
		return Transition{}, fmt.Errorf("request %s: %w: %s", next.ID, workflow.ErrInvalidState, next.Status)
	}

	sm := workflow.NewRequestMachine(from, g)
	if !sm.CanFire(trigger) {
		return Transition{}, errs.NewAuthorizationError(actor.ID, action,
			fmt.Sprintf("request is %s", next.Status))
	}

	if err := sm.Fire(ctx, trigger); err != nil {
		var verr *errs.ValidationError
		if errors.As(err, &verr) {
			return Transition{}, verr
		}
		return Transition{}, err
	}

	next.Status = sm.State().RequestStatus()
	return Transition{From: from.RequestStatus(), To: next.Status, Action: actionType(trigger)}, nil
}

func actionType(trigger workflow.Trigger) string {
	switch trigger {
	case workflow.TriggerSubmit:
		return entity.ActionSubmit
	case workflow.TriggerApprove:
		return entity.ActionApprove
	case workflow.TriggerReject:
		return entity.ActionReject
	case workflow.TriggerMarkPaid:
		return entity.ActionMarkPaid
	default:
		return string(trigger)
	}
}

func undecidedExpenses(req *entity.TravelSupportRequest) error {
	v := errs.NewValidationError("decide every expense or set an approved amount")
	for _, e := range req.Expenses {
		if e.Status == entity.ExpenseStatusPending {
			v.Add(fmt.Sprintf("expenses[%s].status", e.ID), "is still pending")
		}
	}
	return v.OrNil()
}

func submitEligible(req *entity.TravelSupportRequest) error {
	baseline := errs.NewValidationError(SubmitIncompleteMessage)
	if strings.TrimSpace(req.BankingDetails.BeneficiaryName) == "" {
		baseline.Add("banking_details."+validation.FieldBeneficiaryName, "is required")
	}
	if len(req.Expenses) == 0 {
		baseline.Add("expenses", "at least one expense is required")
	}
	if baseline.HasErrors() {
		return baseline
	}

	v := errs.NewValidationError("request is not ready for submission")
	v.Merge("banking_details.", validation.ValidateBankingDetails(req.BankingDetails))

	expenses := append([]*entity.TravelExpense(nil), req.Expenses...)
	sort.SliceStable(expenses, func(i, j int) bool { return expenses[i].CreatedAt.Before(expenses[j].CreatedAt) })
	for _, e := range expenses {
		v.Merge(fmt.Sprintf("expenses[%s].", e.ID), validation.ValidateExpense(e, validation.ModeSubmission))
	}
	return v.OrNil()
}
