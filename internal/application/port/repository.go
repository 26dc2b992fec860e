package port

import (
	"context"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// RequestFilter narrows a request listing
type RequestFilter struct {
	SpeakerID string
	Status    entity.RequestStatus
	Limit     int
	Offset    int
}

// RequestRepository persists the request row. Expenses and receipts are
// stored by their own repositories.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.TravelSupportRequest) error
	GetByID(ctx context.Context, id string) (*entity.TravelSupportRequest, error)
	// Update writes req only while the stored status still equals
	// expected, and returns errs.ErrConflict otherwise
	Update(ctx context.Context, req *entity.TravelSupportRequest, expected entity.RequestStatus) error
	List(ctx context.Context, filter RequestFilter) ([]*entity.TravelSupportRequest, error)
}

// ExpenseRepository persists expenses without their receipts
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.TravelExpense) error
	Update(ctx context.Context, expense *entity.TravelExpense) error
	Delete(ctx context.Context, id string) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.TravelExpense, error)
}

// ReceiptRepository persists receipt metadata
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	Delete(ctx context.Context, id string) error
	GetByRequestID(ctx context.Context, requestID string) ([]entity.Receipt, error)
}

// HistoryRepository persists the audit trail of a request
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.StatusHistory) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
