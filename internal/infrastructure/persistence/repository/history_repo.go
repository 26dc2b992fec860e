package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends a history record and sets its ID
func (r *HistoryRepository) Create(ctx context.Context, h *entity.StatusHistory) error {
	query := `
		INSERT INTO status_history (
			request_id, expense_id, actor_id, previous_status, new_status,
			action_type, notes, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		h.RequestID, h.ExpenseID, h.ActorID, h.PreviousStatus, h.NewStatus,
		h.ActionType, h.Notes, h.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("request_id", h.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	h.ID = id
	return nil
}

// GetByRequestID returns the audit trail of a request, oldest first
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	query := `
		SELECT id, request_id, expense_id, actor_id, previous_status, new_status,
			action_type, notes, timestamp
		FROM status_history
		WHERE request_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.StatusHistory
	for rows.Next() {
		var h entity.StatusHistory
		err := rows.Scan(
			&h.ID, &h.RequestID, &h.ExpenseID, &h.ActorID, &h.PreviousStatus, &h.NewStatus,
			&h.ActionType, &h.Notes, &h.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
