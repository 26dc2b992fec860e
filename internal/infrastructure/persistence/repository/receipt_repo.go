package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
)

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sqlite.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{db: db, logger: logger}
}

// Create stores receipt metadata. The file itself lives in file storage.
func (r *ReceiptRepository) Create(ctx context.Context, rc *entity.Receipt) error {
	query := `
		INSERT INTO receipts (id, expense_id, file_ref, url, filename, mime_type, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rc.ID, rc.ExpenseID, rc.FileRef, rc.URL, rc.Filename, rc.MimeType, rc.Size, rc.UploadedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt", zap.String("id", rc.ID), zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}
	return nil
}

// Delete removes receipt metadata
func (r *ReceiptRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete receipt", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return expectAffected(result)
}

// GetByRequestID returns every receipt attached to any expense of a request
func (r *ReceiptRepository) GetByRequestID(ctx context.Context, requestID string) ([]entity.Receipt, error) {
	query := `
		SELECT rc.id, rc.expense_id, rc.file_ref, rc.url, rc.filename, rc.mime_type, rc.size, rc.uploaded_at
		FROM receipts rc
		JOIN travel_expenses e ON e.id = rc.expense_id
		WHERE e.request_id = ?
		ORDER BY rc.uploaded_at ASC, rc.id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get receipts by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipts: %w", err)
	}
	defer rows.Close()

	var receipts []entity.Receipt
	for rows.Next() {
		var rc entity.Receipt
		if err := rows.Scan(&rc.ID, &rc.ExpenseID, &rc.FileRef, &rc.URL, &rc.Filename, &rc.MimeType, &rc.Size, &rc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
