package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `
	id, speaker_id, conference_id, status,
	beneficiary_name, bank_name, iban, account_number, swift_code, country, preferred_currency,
	approved_amount, expected_payment_date, review_notes, reviewed_by,
	submitted_at, reviewed_at, paid_at, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// Create inserts the request row
func (r *RequestRepository) Create(ctx context.Context, req *entity.TravelSupportRequest) error {
	query := `INSERT INTO travel_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	b := req.BankingDetails
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.ID, req.SpeakerID, req.ConferenceID, req.Status,
		b.BeneficiaryName, b.BankName, b.IBAN, b.AccountNumber, b.SwiftCode, b.Country, b.PreferredCurrency,
		req.ApprovedAmount, req.ExpectedPaymentDate.String(), req.ReviewNotes, req.ReviewedBy,
		nullTime(req.SubmittedAt), nullTime(req.ReviewedAt), nullTime(req.PaidAt), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetByID returns the request row without expenses
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.TravelSupportRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM travel_requests WHERE id = ?`

	req, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Update overwrites every mutable column of the request row, provided the
// row is still in the expected status
func (r *RequestRepository) Update(ctx context.Context, req *entity.TravelSupportRequest, expected entity.RequestStatus) error {
	query := `
		UPDATE travel_requests SET
			status = ?, beneficiary_name = ?, bank_name = ?, iban = ?, account_number = ?,
			swift_code = ?, country = ?, preferred_currency = ?,
			approved_amount = ?, expected_payment_date = ?, review_notes = ?, reviewed_by = ?,
			submitted_at = ?, reviewed_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	b := req.BankingDetails
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.Status, b.BeneficiaryName, b.BankName, b.IBAN, b.AccountNumber,
		b.SwiftCode, b.Country, b.PreferredCurrency,
		req.ApprovedAmount, req.ExpectedPaymentDate.String(), req.ReviewNotes, req.ReviewedBy,
		nullTime(req.SubmittedAt), nullTime(req.ReviewedAt), nullTime(req.PaidAt), req.UpdatedAt,
		req.ID, expected,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	err = expectAffected(result)
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if _, getErr := r.GetByID(ctx, req.ID); getErr != nil {
		return getErr
	}
	r.logger.Warn("Request changed status before update",
		zap.String("id", req.ID),
		zap.String("expected", string(expected)))
	return fmt.Errorf("request %s is no longer %s: %w", req.ID, expected, errs.ErrConflict)
}

// List returns request rows matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error) {
	var where []string
	var args []interface{}
	if filter.SpeakerID != "" {
		where = append(where, "speaker_id = ?")
		args = append(args, filter.SpeakerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + requestColumns + ` FROM travel_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.TravelSupportRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (*entity.TravelSupportRequest, error) {
	var req entity.TravelSupportRequest
	var expectedDate string
	var submittedAt, reviewedAt, paidAt sql.NullTime
	b := &req.BankingDetails

	err := row.Scan(
		&req.ID, &req.SpeakerID, &req.ConferenceID, &req.Status,
		&b.BeneficiaryName, &b.BankName, &b.IBAN, &b.AccountNumber, &b.SwiftCode, &b.Country, &b.PreferredCurrency,
		&req.ApprovedAmount, &expectedDate, &req.ReviewNotes, &req.ReviewedBy,
		&submittedAt, &reviewedAt, &paidAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if req.ExpectedPaymentDate, err = entity.ParseDate(expectedDate); err != nil {
		return nil, err
	}
	req.SubmittedAt = timePtr(submittedAt)
	req.ReviewedAt = timePtr(reviewedAt)
	req.PaidAt = timePtr(paidAt)
	return &req, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
