package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/event"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

var (
	speaker  = entity.Actor{ID: "speaker-1", Role: entity.RoleSpeaker}
	reviewer = entity.Actor{ID: "reviewer-1", Role: entity.RoleReviewer}
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

type travelFixture struct {
	svc     TravelService
	impl    *travelServiceImpl
	store   *memStore
	repos   Repositories
	storage *mockStorage
	events  *mockDispatcher
	logger  *mockLogger
}

func newTravelFixture(t *testing.T) *travelFixture {
	t.Helper()
	store := newMemStore()
	repos := store.repos()
	storage := newMockStorage()
	events := &mockDispatcher{}
	logger := &mockLogger{}

	svc := NewTravelService(repos, &mockTxManager{}, storage, validation.NewReceiptPolicy(0, nil), events, time.Second, logger)
	impl := svc.(*travelServiceImpl)

	var seq atomic.Int64
	clock := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	impl.newID = func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	impl.now = func() time.Time {
		return clock.Add(time.Duration(seq.Load()) * time.Second)
	}

	return &travelFixture{svc: svc, impl: impl, store: store, repos: repos, storage: storage, events: events, logger: logger}
}

func hotelInput() entity.ExpenseInput {
	return entity.ExpenseInput{
		Category:    entity.CategoryAccommodation,
		Description: "Hotel, 3 nights",
		Amount:      decimal.RequireFromString("1850"),
		Currency:    entity.CurrencyGBP,
		ExpenseDate: entity.NewDate(2026, 9, 1),
	}
}

func bankingDetails() entity.BankingDetails {
	return entity.BankingDetails{
		BeneficiaryName:   "Ada Lovelace",
		IBAN:              "NO9386011117947",
		Country:           "Norway",
		PreferredCurrency: entity.CurrencyNOK,
	}
}

// draftWithExpense creates a request with banking details and one expense
// carrying a receipt, ready for submission
func (f *travelFixture) draftWithExpense(t *testing.T) (*entity.TravelSupportRequest, *entity.TravelExpense) {
	t.Helper()
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, speaker, "conf-2026")
	require.NoError(t, err)
	_, err = f.svc.UpdateBankingDetails(ctx, speaker, req.ID, bankingDetails())
	require.NoError(t, err)
	expense, err := f.svc.AddExpense(ctx, speaker, req.ID, hotelInput())
	require.NoError(t, err)
	res, err := f.svc.UploadReceipts(ctx, speaker, req.ID, expense.ID, []validation.ReceiptFile{{Filename: "hotel.png", Content: pngBytes}})
	require.NoError(t, err)
	require.Len(t, res.Uploaded, 1)

	return req, expense
}

func TestTravelService_Lifecycle(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)

	submitted, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusSubmitted, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	reviewed, err := f.svc.UpdateExpenseStatus(ctx, reviewer, req.ID, expense.ID, entity.DecisionApprove, "fine")
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, reviewed.Status)

	approved, err := f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{
		Action:              ActionApprove,
		ExpectedPaymentDate: entity.NewDate(2026, 10, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, approved.Status)
	assert.False(t, approved.ApprovedAmount.Valid)

	paid, err := f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{Action: ActionPaid})
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusPaid, stored.Status)
	require.Len(t, stored.Expenses, 1)
	assert.Equal(t, entity.ExpenseStatusApproved, stored.Expenses[0].Status)
	assert.Len(t, stored.Expenses[0].Receipts, 1)

	history, err := f.svc.GetHistory(ctx, speaker, req.ID)
	require.NoError(t, err)
	var actions []string
	for _, h := range history {
		actions = append(actions, h.ActionType)
	}
	assert.Equal(t, []string{
		entity.ActionCreate, entity.ActionSubmit, entity.ActionExpenseReview, entity.ActionApprove, entity.ActionMarkPaid,
	}, actions)

	assert.Equal(t, []event.Type{
		event.TypeRequestCreated, event.TypeRequestSubmitted, event.TypeExpenseReviewed, event.TypeRequestApproved, event.TypeRequestPaid,
	}, f.events.Types())
}

func TestTravelService_SubmitEmptyRequest(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, speaker, "conf-2026")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, speaker, req.ID)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "at least one expense")

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusDraft, stored.Status)
}

func TestTravelService_SelfApprovalLeavesStateUntouched(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)
	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)
	eventsBefore := len(f.events.Types())

	selfAdmin := entity.Actor{ID: speaker.ID, Role: entity.RoleAdmin}
	_, err = f.svc.UpdateStatus(ctx, selfAdmin, req.ID, StatusUpdate{Action: ActionApprove})
	assert.True(t, errs.IsAuthorization(err))

	_, err = f.svc.UpdateExpenseStatus(ctx, selfAdmin, req.ID, expense.ID, entity.DecisionApprove, "")
	assert.True(t, errs.IsAuthorization(err))

	stored, err := f.svc.GetRequest(ctx, reviewer, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusSubmitted, stored.Status)
	assert.Equal(t, entity.ExpenseStatusPending, stored.Expenses[0].Status)
	assert.Len(t, f.events.Types(), eventsBefore)
}

func TestTravelService_RejectExpenseKeepsSiblings(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, first := f.draftWithExpense(t)

	second, err := f.svc.AddExpense(ctx, speaker, req.ID, entity.ExpenseInput{
		Category:    entity.CategoryTransportation,
		Description: "Train",
		Amount:      decimal.RequireFromString("120"),
		Currency:    entity.CurrencyEUR,
		ExpenseDate: entity.NewDate(2026, 9, 2),
	})
	require.NoError(t, err)
	_, err = f.svc.UploadReceipts(ctx, speaker, req.ID, second.ID, []validation.ReceiptFile{{Filename: "train.pdf", Content: pdfBytes}})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateExpenseStatus(ctx, reviewer, req.ID, second.ID, entity.DecisionReject, "book in advance")
	require.NoError(t, err)

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusSubmitted, stored.Status)
	assert.Equal(t, entity.ExpenseStatusPending, stored.Expense(first.ID).Status)
	assert.Equal(t, entity.ExpenseStatusRejected, stored.Expense(second.ID).Status)
	assert.Equal(t, "book in advance", stored.Expense(second.ID).ReviewNotes)
}

func TestTravelService_UploadReceiptsPartialSuccess(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, speaker, "conf-2026")
	require.NoError(t, err)
	expense, err := f.svc.AddExpense(ctx, speaker, req.ID, hotelInput())
	require.NoError(t, err)

	f.storage.saveFunc = func(ctx context.Context, key string, content []byte) (port.StoredFile, error) {
		if len(content) > 0 && content[0] == '%' {
			return port.StoredFile{}, errors.New("bucket unavailable")
		}
		return port.StoredFile{Ref: key, URL: "/files/" + key}, nil
	}

	res, err := f.svc.UploadReceipts(ctx, speaker, req.ID, expense.ID, []validation.ReceiptFile{
		{Filename: "ok.png", Content: pngBytes},
		{Filename: "notes.txt", Content: []byte("just some text")},
		{Filename: "flaky.pdf", Content: pdfBytes},
	})
	require.NoError(t, err)

	require.Len(t, res.Uploaded, 1)
	assert.Equal(t, "ok.png", res.Uploaded[0].Filename)
	assert.Equal(t, "image/png", res.Uploaded[0].MimeType)

	require.Len(t, res.Failed, 2)
	failed := map[string]FailedUpload{}
	for _, fu := range res.Failed {
		failed[fu.Filename] = fu
	}
	assert.False(t, failed["notes.txt"].Retriable, "a bad file type needs a different file")
	assert.True(t, failed["flaky.pdf"].Retriable, "a storage failure can be retried")

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Expenses[0].Receipts, 1)
}

func TestTravelService_UploadReceiptsTimeout(t *testing.T) {
	f := newTravelFixture(t)
	f.impl.uploadTimeout = 20 * time.Millisecond
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, speaker, "conf-2026")
	require.NoError(t, err)
	expense, err := f.svc.AddExpense(ctx, speaker, req.ID, hotelInput())
	require.NoError(t, err)

	// a backend that ignores the context
	f.storage.saveFunc = func(ctx context.Context, key string, content []byte) (port.StoredFile, error) {
		time.Sleep(200 * time.Millisecond)
		return port.StoredFile{Ref: key}, nil
	}

	start := time.Now()
	res, err := f.svc.UploadReceipts(ctx, speaker, req.ID, expense.ID, []validation.ReceiptFile{{Filename: "slow.png", Content: pngBytes}})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Empty(t, res.Uploaded)
	require.Len(t, res.Failed, 1)
	assert.True(t, res.Failed[0].Retriable)
	assert.Contains(t, res.Failed[0].Reason, "deadline exceeded")
}

func TestTravelService_UploadReceiptsReleasesFilesWhenSaveFails(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()

	req, err := f.svc.CreateRequest(ctx, speaker, "conf-2026")
	require.NoError(t, err)
	expense, err := f.svc.AddExpense(ctx, speaker, req.ID, hotelInput())
	require.NoError(t, err)

	f.repos.Receipts.(*mockReceiptRepo).createFunc = func(ctx context.Context, r *entity.Receipt) error {
		return errors.New("database is locked")
	}

	res, err := f.svc.UploadReceipts(ctx, speaker, req.ID, expense.ID, []validation.ReceiptFile{{Filename: "a.png", Content: pngBytes}})
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	require.Len(t, res.Failed, 1)
	assert.True(t, res.Failed[0].Retriable)
	assert.Equal(t, 0, f.storage.Count())
}

func TestTravelService_UploadReceiptsAfterSubmit(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)
	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)
	filesBefore := f.storage.Count()

	_, err = f.svc.UploadReceipts(ctx, speaker, req.ID, expense.ID, []validation.ReceiptFile{{Filename: "late.png", Content: pngBytes}})
	assert.True(t, errs.IsAuthorization(err))
	assert.Equal(t, filesBefore, f.storage.Count(), "nothing is stored for a refused upload")
}

func TestTravelService_DeleteExpenseRemovesReceiptFiles(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)
	require.Equal(t, 1, f.storage.Count())

	require.NoError(t, f.svc.DeleteExpense(ctx, speaker, req.ID, expense.ID))

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Expenses)
	assert.Equal(t, 0, f.storage.Count())
}

func TestTravelService_DeleteReceipt(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	receiptID := stored.Expenses[0].Receipts[0].ID

	require.NoError(t, f.svc.DeleteReceipt(ctx, speaker, req.ID, expense.ID, receiptID))
	assert.Equal(t, 0, f.storage.Count())

	err = f.svc.DeleteReceipt(ctx, speaker, req.ID, expense.ID, receiptID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTravelService_ReadReceipt(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	receiptID := stored.Expenses[0].Receipts[0].ID

	receipt, content, err := f.svc.ReadReceipt(ctx, reviewer, req.ID, expense.ID, receiptID)
	require.NoError(t, err)
	assert.Equal(t, "hotel.png", receipt.Filename)
	assert.Equal(t, pngBytes, content)

	_, _, err = f.svc.ReadReceipt(ctx, entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}, req.ID, expense.ID, receiptID)
	assert.True(t, errs.IsAuthorization(err))

	_, _, err = f.svc.ReadReceipt(ctx, speaker, req.ID, expense.ID, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTravelService_UpdateExpense(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)

	in := hotelInput()
	in.Amount = decimal.RequireFromString("1700")
	updated, err := f.svc.UpdateExpense(ctx, speaker, req.ID, expense.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("1700")))

	in.Description = ""
	_, err = f.svc.UpdateExpense(ctx, speaker, req.ID, expense.ID, in)
	assert.True(t, errs.IsValidation(err))
	assert.NotEmpty(t, f.logger.warns)
}

func TestTravelService_UpdateStatusUnknownAction(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, _ := f.draftWithExpense(t)
	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{Action: "escalate"})
	assert.True(t, errs.IsValidation(err))
}

func TestTravelService_ApproveRequiresDecidedExpenses(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, expense := f.draftWithExpense(t)
	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{Action: ActionApprove})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	stored, err := f.svc.GetRequest(ctx, reviewer, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusSubmitted, stored.Status)

	_, err = f.svc.UpdateExpenseStatus(ctx, reviewer, req.ID, expense.ID, entity.DecisionReject, "no receipt total")
	require.NoError(t, err)
	approved, err := f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, approved.Status)
}

func TestTravelService_ApproveWithOverride(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, _ := f.draftWithExpense(t)
	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.NoError(t, err)

	approved, err := f.svc.UpdateStatus(ctx, reviewer, req.ID, StatusUpdate{
		Action:         ActionApprove,
		ApprovedAmount: decimal.NewNullDecimal(decimal.RequireFromString("15000")),
		ReviewNotes:    "capped at policy maximum",
	})
	require.NoError(t, err)
	assert.True(t, approved.ApprovedAmount.Decimal.Equal(decimal.RequireFromString("15000")))

	f.events.mu.Lock()
	last := f.events.published[len(f.events.published)-1]
	f.events.mu.Unlock()
	assert.Equal(t, event.TypeRequestApproved, last.Type)
	assert.Equal(t, "15000.00", last.GetPayloadString(event.KeyApprovedAmount))
	assert.Equal(t, "capped at policy maximum", last.GetPayloadString(event.KeyNotes))
}

func TestTravelService_ListRequests(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	other := entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}

	_, err := f.svc.CreateRequest(ctx, speaker, "conf-a")
	require.NoError(t, err)
	_, err = f.svc.CreateRequest(ctx, other, "conf-b")
	require.NoError(t, err)

	mine, err := f.svc.ListRequests(ctx, speaker, port.RequestFilter{SpeakerID: other.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, speaker.ID, mine[0].SpeakerID)

	all, err := f.svc.ListRequests(ctx, reviewer, port.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListRequests(ctx, entity.Actor{}, port.RequestFilter{})
	assert.True(t, errs.IsAuthorization(err))
}

func TestTravelService_GetRequestAuthorization(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, speaker, "conf-a")
	require.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, entity.Actor{ID: "speaker-2", Role: entity.RoleSpeaker}, req.ID)
	assert.True(t, errs.IsAuthorization(err))

	_, err = f.svc.GetRequest(ctx, speaker, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTravelService_TransactionFailure(t *testing.T) {
	f := newTravelFixture(t)
	ctx := context.Background()
	req, _ := f.draftWithExpense(t)

	f.impl.txManager = &mockTxManager{
		withTransactionFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return errors.New("database is locked")
		},
	}

	_, err := f.svc.Submit(ctx, speaker, req.ID)
	require.Error(t, err)
	assert.NotEmpty(t, f.logger.errs)

	stored, err := f.svc.GetRequest(ctx, speaker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusDraft, stored.Status)
}
