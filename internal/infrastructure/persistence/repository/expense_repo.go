package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/infrastructure/persistence/sqlite"
)

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

// Create inserts an expense. Receipts are stored separately.
func (r *ExpenseRepository) Create(ctx context.Context, e *entity.TravelExpense) error {
	query := `
		INSERT INTO travel_expenses (
			id, request_id, category, description, amount, currency, custom_currency,
			expense_date, location, status, review_notes, reviewed_by, reviewed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		e.ID, e.RequestID, e.Category, e.Description, e.Amount, e.Currency, e.CustomCurrency,
		e.ExpenseDate.String(), e.Location, e.Status, e.ReviewNotes, e.ReviewedBy, nullTime(e.ReviewedAt),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.String("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// Update overwrites the expense row
func (r *ExpenseRepository) Update(ctx context.Context, e *entity.TravelExpense) error {
	query := `
		UPDATE travel_expenses SET
			category = ?, description = ?, amount = ?, currency = ?, custom_currency = ?,
			expense_date = ?, location = ?, status = ?, review_notes = ?, reviewed_by = ?,
			reviewed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		e.Category, e.Description, e.Amount, e.Currency, e.CustomCurrency,
		e.ExpenseDate.String(), e.Location, e.Status, e.ReviewNotes, e.ReviewedBy,
		nullTime(e.ReviewedAt), e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.String("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return expectAffected(result)
}

// Delete removes an expense; its receipts go with it
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM travel_expenses WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return expectAffected(result)
}

// GetByRequestID returns the expenses of a request in creation order
func (r *ExpenseRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.TravelExpense, error) {
	query := `
		SELECT id, request_id, category, description, amount, currency, custom_currency,
			expense_date, location, status, review_notes, reviewed_by, reviewed_at,
			created_at, updated_at
		FROM travel_expenses
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get expenses by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.TravelExpense
	for rows.Next() {
		var e entity.TravelExpense
		var expenseDate string
		var reviewedAt sql.NullTime

		err := rows.Scan(
			&e.ID, &e.RequestID, &e.Category, &e.Description, &e.Amount, &e.Currency, &e.CustomCurrency,
			&expenseDate, &e.Location, &e.Status, &e.ReviewNotes, &e.ReviewedBy, &reviewedAt,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.ExpenseDate, err = entity.ParseDate(expenseDate); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.ReviewedAt = timePtr(reviewedAt)
		expenses = append(expenses, &e)
	}
	return expenses, rows.Err()
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
