package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
)

// Repositories groups the stores that make up a request aggregate
type Repositories struct {
	Requests port.RequestRepository
	Expenses port.ExpenseRepository
	Receipts port.ReceiptRepository
	History  port.HistoryRepository
}

// load assembles the full aggregate: the request row, its expenses in
// creation order, and each expense's receipts
func (r Repositories) load(ctx context.Context, id string) (*entity.TravelSupportRequest, error) {
	req, err := r.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}

	expenses, err := r.Expenses.GetByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get expenses of %s: %w", id, err)
	}

	receipts, err := r.Receipts.GetByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get receipts of %s: %w", id, err)
	}

	byExpense := make(map[string][]entity.Receipt, len(expenses))
	for _, rc := range receipts {
		byExpense[rc.ExpenseID] = append(byExpense[rc.ExpenseID], rc)
	}
	for _, e := range expenses {
		e.Receipts = byExpense[e.ID]
		if e.Receipts == nil {
			e.Receipts = []entity.Receipt{}
		}
	}

	req.Expenses = expenses
	return req, nil
}
