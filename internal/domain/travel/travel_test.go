package travel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

var (
	t0       = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	speaker  = entity.Actor{ID: "speaker-1", Role: entity.RoleSpeaker}
	reviewer = entity.Actor{ID: "reviewer-1", Role: entity.RoleReviewer}
	admin    = entity.Actor{ID: "admin-1", Role: entity.RoleAdmin}
)

func banking() entity.BankingDetails {
	return entity.BankingDetails{
		BeneficiaryName:   "Ada Lovelace",
		BankName:          "DNB",
		IBAN:              "NO93 8601 1117 947",
		SwiftCode:         "dnbanokk",
		Country:           "Norway",
		PreferredCurrency: entity.CurrencyNOK,
	}
}

func hotel() entity.ExpenseInput {
	return entity.ExpenseInput{
		Category:    entity.CategoryAccommodation,
		Description: "Hotel, 3 nights",
		Amount:      decimal.RequireFromString("1850"),
		Currency:    entity.CurrencyGBP,
		ExpenseDate: entity.NewDate(2026, 9, 1),
	}
}

func receipt(id string) entity.Receipt {
	return entity.Receipt{ID: id, FileRef: "receipts/" + id + ".pdf", Filename: id + ".pdf", MimeType: "application/pdf", Size: 1024, UploadedAt: t0}
}

// readyDraft returns a draft with banking details and one expense with a receipt
func readyDraft(t *testing.T) *entity.TravelSupportRequest {
	t.Helper()
	req, err := New("req-1", speaker.ID, "conf-1", t0)
	require.NoError(t, err)
	req, err = UpdateBankingDetails(req, speaker, banking(), t0)
	require.NoError(t, err)
	req, _, err = AddExpense(req, speaker, "exp-1", hotel(), t0)
	require.NoError(t, err)
	req, err = AttachReceipts(req, speaker, "exp-1", []entity.Receipt{receipt("r-1")}, t0)
	require.NoError(t, err)
	return req
}

func submitted(t *testing.T) *entity.TravelSupportRequest {
	t.Helper()
	req, _, err := Submit(context.Background(), readyDraft(t), speaker, t0)
	require.NoError(t, err)
	return req
}

func TestNew(t *testing.T) {
	req, err := New("req-1", speaker.ID, "conf-1", t0)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusDraft, req.Status)
	assert.Empty(t, req.Expenses)
	assert.True(t, req.IsEditable())

	_, err = New("req-2", "", "", t0)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"conference_id", "speaker_id"}, verr.FieldNames())
}

func TestUpdateBankingDetails_Normalizes(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	next, err := UpdateBankingDetails(req, speaker, banking(), t0)
	require.NoError(t, err)

	assert.Equal(t, "NO9386011117947", next.BankingDetails.IBAN)
	assert.Equal(t, "DNBANOKK", next.BankingDetails.SwiftCode)
	assert.Empty(t, req.BankingDetails.BeneficiaryName, "input snapshot must not change")
}

func TestUpdateBankingDetails_OtherSpeakerBlocked(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	_, err := UpdateBankingDetails(req, entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}, banking(), t0)
	assert.True(t, errs.IsAuthorization(err))
}

func TestAddExpense(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)

	next, expense, err := AddExpense(req, speaker, "exp-1", hotel(), t0)
	require.NoError(t, err)
	assert.Len(t, next.Expenses, 1)
	assert.Empty(t, req.Expenses)
	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	assert.Equal(t, "req-1", expense.RequestID)
	assert.Empty(t, expense.Receipts, "receipts are optional while drafting")
}

func TestAddExpense_InvalidInputReportsEveryField(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	in := entity.ExpenseInput{Category: entity.CategoryMeals, Currency: entity.CurrencyOther, CustomCurrency: "yen!"}

	_, _, err := AddExpense(req, speaker, "exp-1", in, t0)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"amount", "custom_currency", "description", "expense_date"}, verr.FieldNames())
}

func TestAddExpense_CustomCurrencyNormalized(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	in := hotel()
	in.Currency = entity.CurrencyOther
	in.CustomCurrency = " jpy "

	_, expense, err := AddExpense(req, speaker, "exp-1", in, t0)
	require.NoError(t, err)
	assert.Equal(t, "JPY", expense.CustomCurrency)
	assert.Equal(t, "JPY", expense.CurrencyLabel())
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	req := readyDraft(t)

	in := hotel()
	in.Amount = decimal.RequireFromString("2000.50")
	next, expense, err := UpdateExpense(req, speaker, "exp-1", in, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, expense.Amount.Equal(decimal.RequireFromString("2000.50")))
	assert.Len(t, expense.Receipts, 1, "receipts survive an update")
	assert.True(t, req.Expenses[0].Amount.Equal(decimal.RequireFromString("1850")))

	next, removed, err := DeleteExpense(next, speaker, "exp-1", t0)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", removed.ID)
	assert.Empty(t, next.Expenses)

	_, _, err = DeleteExpense(next, speaker, "exp-1", t0)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteReceipt(t *testing.T) {
	req := readyDraft(t)

	next, removed, err := DeleteReceipt(req, speaker, "exp-1", "r-1", t0)
	require.NoError(t, err)
	assert.Equal(t, "receipts/r-1.pdf", removed.FileRef)
	assert.Empty(t, next.Expenses[0].Receipts)
	assert.Len(t, req.Expenses[0].Receipts, 1)

	_, _, err = DeleteReceipt(next, speaker, "exp-1", "r-1", t0)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEditsBlockedAfterSubmit(t *testing.T) {
	req := submitted(t)

	_, err := UpdateBankingDetails(req, speaker, banking(), t0)
	assert.True(t, errs.IsAuthorization(err))

	_, _, err = AddExpense(req, speaker, "exp-2", hotel(), t0)
	assert.True(t, errs.IsAuthorization(err))

	_, _, err = UpdateExpense(req, speaker, "exp-1", hotel(), t0)
	assert.True(t, errs.IsAuthorization(err))

	_, _, err = DeleteExpense(req, speaker, "exp-1", t0)
	assert.True(t, errs.IsAuthorization(err), "expenses of a submitted request are never deleted")

	_, err = AttachReceipts(req, speaker, "exp-1", []entity.Receipt{receipt("r-2")}, t0)
	assert.True(t, errs.IsAuthorization(err))
}

func TestSubmit(t *testing.T) {
	draft := readyDraft(t)
	now := t0.Add(2 * time.Hour)

	next, tr, err := Submit(context.Background(), draft, speaker, now)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusSubmitted, next.Status)
	require.NotNil(t, next.SubmittedAt)
	assert.Equal(t, now, *next.SubmittedAt)
	assert.Equal(t, Transition{From: entity.RequestStatusDraft, To: entity.RequestStatusSubmitted, Action: entity.ActionSubmit}, tr)
	assert.Equal(t, entity.RequestStatusDraft, draft.Status)
}

func TestSubmit_EmptyRequest(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)

	_, _, err := Submit(context.Background(), req, speaker, t0)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, SubmitIncompleteMessage, verr.Message)
	assert.Equal(t, []string{"banking_details.beneficiary_name", "expenses"}, verr.FieldNames())
	assert.Equal(t, entity.RequestStatusDraft, req.Status)
}

func TestSubmit_RevalidatesExpenses(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	req, _ = UpdateBankingDetails(req, speaker, banking(), t0)
	req, _, _ = AddExpense(req, speaker, "exp-1", hotel(), t0)

	// a stale client bypassed the add-time checks
	req.Expenses[0].Description = ""

	_, _, err := Submit(context.Background(), req, speaker, t0)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"expenses[exp-1].description", "expenses[exp-1].receipts"}, verr.FieldNames())
}

func TestSubmit_Twice(t *testing.T) {
	req := submitted(t)
	_, _, err := Submit(context.Background(), req, speaker, t0)
	assert.True(t, errs.IsAuthorization(err))
}

func TestApprove(t *testing.T) {
	req := submitted(t)
	in := ApprovalInput{
		ApprovedAmount:      decimal.NewNullDecimal(decimal.RequireFromString("15000")),
		ExpectedPaymentDate: entity.NewDate(2026, 10, 1),
		ReviewNotes:         " ok ",
	}

	next, tr, err := Approve(context.Background(), req, reviewer, in, t0)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, next.Status)
	assert.True(t, next.ApprovedAmount.Valid)
	assert.Equal(t, "2026-10-01", next.ExpectedPaymentDate.String())
	assert.Equal(t, "ok", next.ReviewNotes)
	assert.Equal(t, reviewer.ID, next.ReviewedBy)
	assert.Equal(t, entity.ActionApprove, tr.Action)
	assert.Equal(t, "ok", tr.Notes)
}

func TestApprove_NegativeOverride(t *testing.T) {
	req := submitted(t)
	in := ApprovalInput{ApprovedAmount: decimal.NewNullDecimal(decimal.NewFromInt(-1))}

	_, _, err := Approve(context.Background(), req, reviewer, in, t0)
	assert.True(t, errs.IsValidation(err))
}

func TestApprove_PendingExpensesNeedOverride(t *testing.T) {
	req := submitted(t)
	require.NotEmpty(t, req.Expenses)
	require.Equal(t, entity.ExpenseStatusPending, req.Expenses[0].Status)

	_, _, err := Approve(context.Background(), req, reviewer, ApprovalInput{}, t0)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{fmt.Sprintf("expenses[%s].status", req.Expenses[0].ID)}, verr.FieldNames())
	assert.Equal(t, entity.RequestStatusSubmitted, req.Status)

	decided := req.Clone()
	decided.Expenses[0].Status = entity.ExpenseStatusRejected
	next, _, err := Approve(context.Background(), decided, reviewer, ApprovalInput{}, t0)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, next.Status)
	assert.False(t, next.ApprovedAmount.Valid)
}

func TestSelfApprovalBlockedForEveryRole(t *testing.T) {
	for _, role := range []entity.Role{entity.RoleSpeaker, entity.RoleReviewer, entity.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			req := submitted(t)
			self := entity.Actor{ID: speaker.ID, Role: role}

			_, _, err := Approve(context.Background(), req, self, ApprovalInput{}, t0)
			assert.True(t, errs.IsAuthorization(err))

			_, _, err = Reject(context.Background(), req, self, "no", t0)
			assert.True(t, errs.IsAuthorization(err))

			assert.Equal(t, entity.RequestStatusSubmitted, req.Status)
		})
	}
}

func TestSpeakerCannotReview(t *testing.T) {
	req := submitted(t)
	_, _, err := Approve(context.Background(), req, entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}, ApprovalInput{}, t0)
	assert.True(t, errs.IsAuthorization(err))
}

func TestReject_NotesOptional(t *testing.T) {
	req := submitted(t)
	next, _, err := Reject(context.Background(), req, admin, "", t0)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusRejected, next.Status)
}

func TestMarkPaid(t *testing.T) {
	req := submitted(t)

	_, _, err := MarkPaid(context.Background(), req, reviewer, t0)
	assert.True(t, errs.IsAuthorization(err), "only approved requests can be paid")

	in := ApprovalInput{ApprovedAmount: decimal.NewNullDecimal(decimal.RequireFromString("1850"))}
	approved, _, err := Approve(context.Background(), req, reviewer, in, t0)
	require.NoError(t, err)
	paidAt := t0.Add(24 * time.Hour)
	paid, tr, err := MarkPaid(context.Background(), approved, admin, paidAt)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusPaid, paid.Status)
	assert.Equal(t, paidAt, *paid.PaidAt)
	assert.Equal(t, entity.ActionMarkPaid, tr.Action)
}

func TestTerminalStates(t *testing.T) {
	ctx := context.Background()
	rejected, _, err := Reject(ctx, submitted(t), reviewer, "out of budget", t0)
	require.NoError(t, err)

	_, _, err = Approve(ctx, rejected, reviewer, ApprovalInput{}, t0)
	assert.True(t, errs.IsAuthorization(err))
	_, _, err = MarkPaid(ctx, rejected, reviewer, t0)
	assert.True(t, errs.IsAuthorization(err))
	_, _, err = Submit(ctx, rejected, speaker, t0)
	assert.True(t, errs.IsAuthorization(err))
}

func TestAuthorizeRead(t *testing.T) {
	req, _ := New("req-1", speaker.ID, "conf-1", t0)
	assert.NoError(t, AuthorizeRead(req, speaker))
	assert.NoError(t, AuthorizeRead(req, reviewer))
	assert.Error(t, AuthorizeRead(req, entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}))
	assert.Error(t, AuthorizeRead(req, entity.Actor{}))
}
