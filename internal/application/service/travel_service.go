package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/application/dispatcher"
	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/event"
	"github.com/garyjia/travel-support/internal/domain/review"
	"github.com/garyjia/travel-support/internal/domain/travel"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

// DefaultUploadTimeout bounds a receipt upload batch
const DefaultUploadTimeout = 30 * time.Second

// Status update actions accepted by UpdateStatus
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionPaid    = "paid"
)

// StatusUpdate is a reviewer's request-level decision
type StatusUpdate struct {
	Action              string
	ApprovedAmount      decimal.NullDecimal
	ExpectedPaymentDate entity.Date
	ReviewNotes         string
}

// FailedUpload reports one receipt that was not attached
type FailedUpload struct {
	Filename  string `json:"filename"`
	Reason    string `json:"reason"`
	Retriable bool   `json:"retriable"`
}

// UploadResult is the per-file outcome of a receipt batch. A batch can
// partially succeed.
type UploadResult struct {
	Uploaded []entity.Receipt `json:"uploaded"`
	Failed   []FailedUpload   `json:"failed"`
}

// TravelService manages travel support requests
type TravelService interface {
	CreateRequest(ctx context.Context, actor entity.Actor, conferenceID string) (*entity.TravelSupportRequest, error)
	GetRequest(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error)
	ListRequests(ctx context.Context, actor entity.Actor, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error)
	GetHistory(ctx context.Context, actor entity.Actor, id string) ([]*entity.StatusHistory, error)
	UpdateBankingDetails(ctx context.Context, actor entity.Actor, id string, details entity.BankingDetails) (*entity.TravelSupportRequest, error)
	AddExpense(ctx context.Context, actor entity.Actor, id string, in entity.ExpenseInput) (*entity.TravelExpense, error)
	UpdateExpense(ctx context.Context, actor entity.Actor, id, expenseID string, in entity.ExpenseInput) (*entity.TravelExpense, error)
	DeleteExpense(ctx context.Context, actor entity.Actor, id, expenseID string) error
	UploadReceipts(ctx context.Context, actor entity.Actor, id, expenseID string, files []validation.ReceiptFile) (*UploadResult, error)
	DeleteReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) error
	ReadReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) (*entity.Receipt, []byte, error)
	Submit(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error)
	UpdateStatus(ctx context.Context, actor entity.Actor, id string, update StatusUpdate) (*entity.TravelSupportRequest, error)
	UpdateExpenseStatus(ctx context.Context, actor entity.Actor, id, expenseID string, decision entity.Decision, notes string) (*entity.TravelExpense, error)
}

type travelServiceImpl struct {
	repos         Repositories
	txManager     port.TransactionManager
	storage       port.FileStorage
	policy        *validation.ReceiptPolicy
	events        dispatcher.Dispatcher
	uploadTimeout time.Duration
	logger        Logger

	now   func() time.Time
	newID func() string
}

// NewTravelService creates a new TravelService. A non-positive
// uploadTimeout selects DefaultUploadTimeout.
func NewTravelService(
	repos Repositories,
	txManager port.TransactionManager,
	storage port.FileStorage,
	policy *validation.ReceiptPolicy,
	events dispatcher.Dispatcher,
	uploadTimeout time.Duration,
	logger Logger,
) TravelService {
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &travelServiceImpl{
		repos:         repos,
		txManager:     txManager,
		storage:       storage,
		policy:        policy,
		events:        events,
		uploadTimeout: uploadTimeout,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// CreateRequest opens a draft request for the acting speaker
func (s *travelServiceImpl) CreateRequest(ctx context.Context, actor entity.Actor, conferenceID string) (*entity.TravelSupportRequest, error) {
	if actor.ID == "" {
		return nil, errs.NewAuthorizationError("", "create request", "no authenticated actor")
	}

	now := s.now()
	req, err := travel.New(s.newID(), actor.ID, conferenceID, now)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.Requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.record(txCtx, req.ID, "", actor.ID, "", string(req.Status), entity.ActionCreate, "Request created", now)
	})
	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "speaker_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Request created", "request_id", req.ID, "speaker_id", actor.ID, "conference_id", conferenceID)
	s.publish(ctx, event.NewEvent(event.TypeRequestCreated, req.ID, req.SpeakerID, nil))
	return req, nil
}

// GetRequest returns the full aggregate if the actor may see it
func (s *travelServiceImpl) GetRequest(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error) {
	req, err := s.repos.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := travel.AuthorizeRead(req, actor); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns request rows without expenses. Speakers only ever
// see their own requests.
func (s *travelServiceImpl) ListRequests(ctx context.Context, actor entity.Actor, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error) {
	if actor.ID == "" {
		return nil, errs.NewAuthorizationError("", "list requests", "no authenticated actor")
	}
	if !actor.CanReview() {
		filter.SpeakerID = actor.ID
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	requests, err := s.repos.Requests.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list requests", "error", err, "actor_id", actor.ID)
		return nil, err
	}
	return requests, nil
}

// GetHistory returns the audit trail of a request
func (s *travelServiceImpl) GetHistory(ctx context.Context, actor entity.Actor, id string) ([]*entity.StatusHistory, error) {
	req, err := s.repos.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	if err := travel.AuthorizeRead(req, actor); err != nil {
		return nil, err
	}
	return s.repos.History.GetByRequestID(ctx, id)
}

// UpdateBankingDetails replaces the payout details of a draft
func (s *travelServiceImpl) UpdateBankingDetails(ctx context.Context, actor entity.Actor, id string, details entity.BankingDetails) (*entity.TravelSupportRequest, error) {
	var next *entity.TravelSupportRequest
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		var err error
		if next, err = travel.UpdateBankingDetails(req, actor, details, s.now()); err != nil {
			return rejected(err)
		}
		return s.repos.Requests.Update(txCtx, next, req.Status)
	})
	if err != nil {
		s.logFailure("Banking details update", err, "request_id", id)
		return nil, unwrapRejection(err)
	}

	s.logger.Info("Banking details updated", "request_id", id)
	return next, nil
}

// AddExpense appends an expense to a draft
func (s *travelServiceImpl) AddExpense(ctx context.Context, actor entity.Actor, id string, in entity.ExpenseInput) (*entity.TravelExpense, error) {
	var expense *entity.TravelExpense
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		next, added, err := travel.AddExpense(req, actor, s.newID(), in, s.now())
		if err != nil {
			return rejected(err)
		}
		if err := s.repos.Expenses.Create(txCtx, added); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return fmt.Errorf("touch request: %w", err)
		}
		expense = added
		return nil
	})
	if err != nil {
		s.logFailure("Add expense", err, "request_id", id)
		return nil, unwrapRejection(err)
	}

	s.logger.Info("Expense added", "request_id", id, "expense_id", expense.ID, "amount", expense.Amount.String(), "currency", expense.CurrencyLabel())
	return expense, nil
}

// UpdateExpense edits a pending expense of a draft
func (s *travelServiceImpl) UpdateExpense(ctx context.Context, actor entity.Actor, id, expenseID string, in entity.ExpenseInput) (*entity.TravelExpense, error) {
	var expense *entity.TravelExpense
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		next, updated, err := travel.UpdateExpense(req, actor, expenseID, in, s.now())
		if err != nil {
			return rejected(err)
		}
		if err := s.repos.Expenses.Update(txCtx, updated); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return err
		}
		expense = updated
		return nil
	})
	if err != nil {
		s.logFailure("Update expense", err, "request_id", id, "expense_id", expenseID)
		return nil, unwrapRejection(err)
	}

	s.logger.Info("Expense updated", "request_id", id, "expense_id", expenseID)
	return expense, nil
}

// DeleteExpense removes a pending expense of a draft along with its
// receipt files
func (s *travelServiceImpl) DeleteExpense(ctx context.Context, actor entity.Actor, id, expenseID string) error {
	var removed *entity.TravelExpense
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		next, gone, err := travel.DeleteExpense(req, actor, expenseID, s.now())
		if err != nil {
			return rejected(err)
		}
		for _, r := range gone.Receipts {
			if err := s.repos.Receipts.Delete(txCtx, r.ID); err != nil {
				return fmt.Errorf("delete receipt %s: %w", r.ID, err)
			}
		}
		if err := s.repos.Expenses.Delete(txCtx, expenseID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return err
		}
		removed = gone
		return nil
	})
	if err != nil {
		s.logFailure("Delete expense", err, "request_id", id, "expense_id", expenseID)
		return unwrapRejection(err)
	}

	for _, r := range removed.Receipts {
		s.releaseFile(ctx, r.FileRef)
	}
	s.logger.Info("Expense deleted", "request_id", id, "expense_id", expenseID, "receipts", len(removed.Receipts))
	return nil
}

// UploadReceipts checks, stores and attaches a batch of receipt files.
// Files are judged one by one: a rejected or failed file does not block
// the rest. Storage is bounded by the upload timeout and a file that
// does not make it in time is reported as retriable.
func (s *travelServiceImpl) UploadReceipts(ctx context.Context, actor entity.Actor, id, expenseID string, files []validation.ReceiptFile) (*UploadResult, error) {
	req, err := s.repos.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// authorization and editability are checked before anything is stored
	if _, err := travel.AttachReceipts(req, actor, expenseID, nil, s.now()); err != nil {
		s.logFailure("Receipt upload", rejected(err), "request_id", id, "expense_id", expenseID)
		return nil, err
	}

	result := &UploadResult{Uploaded: []entity.Receipt{}, Failed: []FailedUpload{}}
	accepted, refused := s.policy.Check(files)
	for _, r := range refused {
		result.Failed = append(result.Failed, FailedUpload{Filename: r.Filename, Reason: r.Reason})
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	var stored []entity.Receipt
	for _, f := range accepted {
		receipt, err := s.store(uploadCtx, id, expenseID, f)
		if err != nil {
			s.logger.Warn("Receipt upload failed", "error", err, "request_id", id, "expense_id", expenseID, "filename", f.Filename)
			result.Failed = append(result.Failed, FailedUpload{Filename: f.Filename, Reason: err.Error(), Retriable: errs.IsNetwork(err)})
			continue
		}
		stored = append(stored, receipt)
	}

	if len(stored) == 0 {
		return result, nil
	}

	// the request may have moved on while files were being stored
	err = s.mutate(ctx, id, func(txCtx context.Context, current *entity.TravelSupportRequest) error {
		next, err := travel.AttachReceipts(current, actor, expenseID, stored, s.now())
		if err != nil {
			return rejected(err)
		}
		for i := range stored {
			if err := s.repos.Receipts.Create(txCtx, &stored[i]); err != nil {
				return fmt.Errorf("create receipt: %w", err)
			}
		}
		return s.repos.Requests.Update(txCtx, next, current.Status)
	})
	if err != nil {
		s.logFailure("Attach receipts", err, "request_id", id, "expense_id", expenseID)
		var r *rejection
		if errors.As(err, &r) || errors.Is(err, errs.ErrConflict) {
			for _, f := range stored {
				s.releaseFile(ctx, f.FileRef)
			}
			return nil, unwrapRejection(err)
		}
		for _, r := range stored {
			s.releaseFile(ctx, r.FileRef)
			result.Failed = append(result.Failed, FailedUpload{Filename: r.Filename, Reason: "could not be saved", Retriable: true})
		}
		return result, nil
	}

	result.Uploaded = stored
	s.logger.Info("Receipts uploaded", "request_id", id, "expense_id", expenseID, "uploaded", len(stored), "failed", len(result.Failed))
	return result, nil
}

// store saves one file, giving up when ctx expires even if the storage
// backend does not watch the context itself
func (s *travelServiceImpl) store(ctx context.Context, requestID, expenseID string, f validation.AcceptedReceipt) (entity.Receipt, error) {
	receiptID := s.newID()
	key := fmt.Sprintf("%s/%s/%s-%s", requestID, expenseID, receiptID, validation.SafeFilename(f.Filename))

	type saved struct {
		file port.StoredFile
		err  error
	}
	done := make(chan saved, 1)
	go func() {
		file, err := s.storage.Save(ctx, key, f.Content)
		done <- saved{file: file, err: err}
	}()

	select {
	case <-ctx.Done():
		// a late write may still land; release it once it does
		go func() {
			if r := <-done; r.err == nil {
				s.releaseFile(context.Background(), r.file.Ref)
			}
		}()
		return entity.Receipt{}, errs.NewNetworkError("upload receipt", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return entity.Receipt{}, errs.NewNetworkError("upload receipt", r.err)
		}
		return entity.Receipt{
			ID:         receiptID,
			ExpenseID:  expenseID,
			FileRef:    r.file.Ref,
			URL:        r.file.URL,
			Filename:   f.Filename,
			MimeType:   f.MimeType,
			Size:       int64(len(f.Content)),
			UploadedAt: s.now(),
		}, nil
	}
}

// DeleteReceipt detaches a receipt and removes its file
func (s *travelServiceImpl) DeleteReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) error {
	var removed *entity.Receipt
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		next, gone, err := travel.DeleteReceipt(req, actor, expenseID, receiptID, s.now())
		if err != nil {
			return rejected(err)
		}
		if err := s.repos.Receipts.Delete(txCtx, receiptID); err != nil {
			return fmt.Errorf("delete receipt: %w", err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return err
		}
		removed = gone
		return nil
	})
	if err != nil {
		s.logFailure("Delete receipt", err, "request_id", id, "receipt_id", receiptID)
		return unwrapRejection(err)
	}

	s.releaseFile(ctx, removed.FileRef)
	s.logger.Info("Receipt deleted", "request_id", id, "expense_id", expenseID, "receipt_id", receiptID)
	return nil
}

// ReadReceipt returns a receipt and its file content to anyone who may
// read the request
func (s *travelServiceImpl) ReadReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) (*entity.Receipt, []byte, error) {
	req, err := s.GetRequest(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}

	expense := req.Expense(expenseID)
	if expense == nil {
		return nil, nil, fmt.Errorf("expense %s: %w", expenseID, errs.ErrNotFound)
	}
	idx := expense.FindReceipt(receiptID)
	if idx < 0 {
		return nil, nil, fmt.Errorf("receipt %s: %w", receiptID, errs.ErrNotFound)
	}
	receipt := expense.Receipts[idx]

	content, err := s.storage.Read(ctx, receipt.FileRef)
	if err != nil {
		s.logger.Error("Failed to read receipt file", "error", err, "request_id", id, "receipt_id", receiptID)
		return nil, nil, errs.NewNetworkError("read receipt", err)
	}
	return &receipt, content, nil
}

// Submit hands a draft over for review
func (s *travelServiceImpl) Submit(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error) {
	next, _, err := s.transition(ctx, id, actor, func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error) {
		return travel.Submit(ctx, req, actor, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.NewEvent(event.TypeRequestSubmitted, next.ID, next.SpeakerID, map[string]interface{}{
		event.KeyActorID: actor.ID,
	}))
	return next, nil
}

// UpdateStatus applies a request-level decision: approve, reject or paid
func (s *travelServiceImpl) UpdateStatus(ctx context.Context, actor entity.Actor, id string, update StatusUpdate) (*entity.TravelSupportRequest, error) {
	var (
		apply   func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error)
		evtType event.Type
		now     = s.now()
	)
	switch update.Action {
	case ActionApprove:
		evtType = event.TypeRequestApproved
		apply = func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error) {
			return travel.Approve(ctx, req, actor, travel.ApprovalInput{
				ApprovedAmount:      update.ApprovedAmount,
				ExpectedPaymentDate: update.ExpectedPaymentDate,
				ReviewNotes:         update.ReviewNotes,
			}, now)
		}
	case ActionReject:
		evtType = event.TypeRequestRejected
		apply = func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error) {
			return travel.Reject(ctx, req, actor, update.ReviewNotes, now)
		}
	case ActionPaid:
		evtType = event.TypeRequestPaid
		apply = func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error) {
			return travel.MarkPaid(ctx, req, actor, now)
		}
	default:
		return nil, errs.NewValidationError("invalid status update").
			Add("action", fmt.Sprintf("must be one of %s, %s, %s", ActionApprove, ActionReject, ActionPaid))
	}

	next, tr, err := s.transition(ctx, id, actor, apply)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		event.KeyActorID:        actor.ID,
		event.KeyPreviousStatus: string(tr.From),
		event.KeyNewStatus:      string(tr.To),
		event.KeyNotes:          tr.Notes,
		event.KeyCurrency:       string(next.BankingDetails.PreferredCurrency),
	}
	if next.ApprovedAmount.Valid {
		payload[event.KeyApprovedAmount] = next.ApprovedAmount.Decimal.StringFixed(2)
	}
	if !next.ExpectedPaymentDate.IsZero() {
		payload[event.KeyExpectedDate] = next.ExpectedPaymentDate.String()
	}
	s.publish(ctx, event.NewEvent(evtType, next.ID, next.SpeakerID, payload))
	return next, nil
}

// UpdateExpenseStatus records a reviewer decision on a single expense.
// Concurrent decisions on the same expense resolve as last write wins.
func (s *travelServiceImpl) UpdateExpenseStatus(ctx context.Context, actor entity.Actor, id, expenseID string, decision entity.Decision, notes string) (*entity.TravelExpense, error) {
	var (
		next *entity.TravelSupportRequest
		out  review.Outcome
		now  = s.now()
	)
	// the parent row is written with its status as the guard, so a decision
	// cannot land after the request left submitted
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		var err error
		if next, out, err = review.Decide(req, expenseID, decision, notes, actor, now); err != nil {
			return rejected(err)
		}
		if err := s.repos.Expenses.Update(txCtx, next.Expense(expenseID)); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return err
		}
		return s.record(txCtx, id, expenseID, actor.ID, string(out.PreviousStatus), string(out.NewStatus), entity.ActionExpenseReview, out.Notes, now)
	})
	if err != nil {
		s.logFailure("Expense decision", err, "request_id", id, "expense_id", expenseID, "actor_id", actor.ID)
		return nil, unwrapRejection(err)
	}
	expense := next.Expense(expenseID)

	s.logger.Info("Expense reviewed", "request_id", id, "expense_id", expenseID, "status", out.NewStatus, "reviewer_id", actor.ID)
	s.publish(ctx, event.NewEvent(event.TypeExpenseReviewed, id, next.SpeakerID, map[string]interface{}{
		event.KeyExpenseID:      expenseID,
		event.KeyDescription:    expense.Description,
		event.KeyPreviousStatus: string(out.PreviousStatus),
		event.KeyNewStatus:      string(out.NewStatus),
		event.KeyNotes:          out.Notes,
		event.KeyActorID:        actor.ID,
	}))
	return expense, nil
}

// transition loads the request, applies a lifecycle command and writes
// the new status with its history row, all in one transaction
func (s *travelServiceImpl) transition(
	ctx context.Context,
	id string,
	actor entity.Actor,
	apply func(req *entity.TravelSupportRequest) (*entity.TravelSupportRequest, travel.Transition, error),
) (*entity.TravelSupportRequest, travel.Transition, error) {
	var (
		next *entity.TravelSupportRequest
		tr   travel.Transition
	)
	err := s.mutate(ctx, id, func(txCtx context.Context, req *entity.TravelSupportRequest) error {
		var err error
		if next, tr, err = apply(req); err != nil {
			return rejected(err)
		}
		if err := s.repos.Requests.Update(txCtx, next, req.Status); err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		return s.record(txCtx, next.ID, "", actor.ID, string(tr.From), string(tr.To), tr.Action, tr.Notes, next.UpdatedAt)
	})
	if err != nil {
		s.logFailure("Status change", err, "request_id", id, "actor_id", actor.ID)
		return nil, travel.Transition{}, unwrapRejection(err)
	}

	s.logger.Info("Request status changed", "request_id", next.ID, "from", tr.From, "to", tr.To, "actor_id", actor.ID)
	return next, tr, nil
}

// mutate loads the aggregate inside a transaction and hands it to fn, so
// whatever fn checks is the state it writes over
func (s *travelServiceImpl) mutate(ctx context.Context, id string, fn func(txCtx context.Context, req *entity.TravelSupportRequest) error) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.repos.load(txCtx, id)
		if err != nil {
			return err
		}
		return fn(txCtx, req)
	})
}

func (s *travelServiceImpl) record(ctx context.Context, requestID, expenseID, actorID, from, to, action, notes string, at time.Time) error {
	h := &entity.StatusHistory{
		RequestID:      requestID,
		ExpenseID:      expenseID,
		ActorID:        actorID,
		PreviousStatus: from,
		NewStatus:      to,
		ActionType:     action,
		Notes:          notes,
		Timestamp:      at,
	}
	if err := s.repos.History.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

func (s *travelServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

func (s *travelServiceImpl) releaseFile(ctx context.Context, ref string) {
	if err := s.storage.Delete(ctx, ref); err != nil {
		s.logger.Warn("Failed to delete receipt file", "error", err, "ref", ref)
	}
}

// rejection marks an error produced by a domain rule rather than by storage
type rejection struct {
	err error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

func rejected(err error) error {
	return &rejection{err: err}
}

func unwrapRejection(err error) error {
	var r *rejection
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

// logFailure logs domain refusals and lost races at warn level, with every
// violated field, and storage failures at error level
func (s *travelServiceImpl) logFailure(op string, err error, kv ...interface{}) {
	var (
		r    *rejection
		verr *errs.ValidationError
	)
	if errors.As(err, &verr) {
		kv = append(kv, "fields", verr.Combined())
	}
	kv = append(kv, "error", err)

	switch {
	case errors.As(err, &r):
		s.logger.Warn(op+" rejected", kv...)
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrNotFound):
		s.logger.Warn(op+" rejected", kv...)
	default:
		s.logger.Error(op+" failed", kv...)
	}
}
