package http

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/application/service"
	"github.com/garyjia/travel-support/internal/currency"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockTravelService answers ErrNotFound for every method without a stub
type mockTravelService struct {
	createFn        func(ctx context.Context, actor entity.Actor, conferenceID string) (*entity.TravelSupportRequest, error)
	getFn           func(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error)
	listFn          func(ctx context.Context, actor entity.Actor, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error)
	historyFn       func(ctx context.Context, actor entity.Actor, id string) ([]*entity.StatusHistory, error)
	bankingFn       func(ctx context.Context, actor entity.Actor, id string, details entity.BankingDetails) (*entity.TravelSupportRequest, error)
	addExpenseFn    func(ctx context.Context, actor entity.Actor, id string, in entity.ExpenseInput) (*entity.TravelExpense, error)
	updateExpenseFn func(ctx context.Context, actor entity.Actor, id, expenseID string, in entity.ExpenseInput) (*entity.TravelExpense, error)
	deleteExpenseFn func(ctx context.Context, actor entity.Actor, id, expenseID string) error
	uploadFn        func(ctx context.Context, actor entity.Actor, id, expenseID string, files []validation.ReceiptFile) (*service.UploadResult, error)
	deleteReceiptFn func(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) error
	readReceiptFn   func(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) (*entity.Receipt, []byte, error)
	submitFn        func(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error)
	statusFn        func(ctx context.Context, actor entity.Actor, id string, update service.StatusUpdate) (*entity.TravelSupportRequest, error)
	expenseStatusFn func(ctx context.Context, actor entity.Actor, id, expenseID string, decision entity.Decision, notes string) (*entity.TravelExpense, error)
}

func (m *mockTravelService) CreateRequest(ctx context.Context, actor entity.Actor, conferenceID string) (*entity.TravelSupportRequest, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, conferenceID)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) GetRequest(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, id)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) ListRequests(ctx context.Context, actor entity.Actor, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, filter)
	}
	return nil, nil
}

func (m *mockTravelService) GetHistory(ctx context.Context, actor entity.Actor, id string) ([]*entity.StatusHistory, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, actor, id)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) UpdateBankingDetails(ctx context.Context, actor entity.Actor, id string, details entity.BankingDetails) (*entity.TravelSupportRequest, error) {
	if m.bankingFn != nil {
		return m.bankingFn(ctx, actor, id, details)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) AddExpense(ctx context.Context, actor entity.Actor, id string, in entity.ExpenseInput) (*entity.TravelExpense, error) {
	if m.addExpenseFn != nil {
		return m.addExpenseFn(ctx, actor, id, in)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) UpdateExpense(ctx context.Context, actor entity.Actor, id, expenseID string, in entity.ExpenseInput) (*entity.TravelExpense, error) {
	if m.updateExpenseFn != nil {
		return m.updateExpenseFn(ctx, actor, id, expenseID, in)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) DeleteExpense(ctx context.Context, actor entity.Actor, id, expenseID string) error {
	if m.deleteExpenseFn != nil {
		return m.deleteExpenseFn(ctx, actor, id, expenseID)
	}
	return errs.ErrNotFound
}

func (m *mockTravelService) UploadReceipts(ctx context.Context, actor entity.Actor, id, expenseID string, files []validation.ReceiptFile) (*service.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, actor, id, expenseID, files)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) DeleteReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) error {
	if m.deleteReceiptFn != nil {
		return m.deleteReceiptFn(ctx, actor, id, expenseID, receiptID)
	}
	return errs.ErrNotFound
}

func (m *mockTravelService) ReadReceipt(ctx context.Context, actor entity.Actor, id, expenseID, receiptID string) (*entity.Receipt, []byte, error) {
	if m.readReceiptFn != nil {
		return m.readReceiptFn(ctx, actor, id, expenseID, receiptID)
	}
	return nil, nil, errs.ErrNotFound
}

func (m *mockTravelService) Submit(ctx context.Context, actor entity.Actor, id string) (*entity.TravelSupportRequest, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, actor, id)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) UpdateStatus(ctx context.Context, actor entity.Actor, id string, update service.StatusUpdate) (*entity.TravelSupportRequest, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, actor, id, update)
	}
	return nil, errs.ErrNotFound
}

func (m *mockTravelService) UpdateExpenseStatus(ctx context.Context, actor entity.Actor, id, expenseID string, decision entity.Decision, notes string) (*entity.TravelExpense, error) {
	if m.expenseStatusFn != nil {
		return m.expenseStatusFn(ctx, actor, id, expenseID, decision, notes)
	}
	return nil, errs.ErrNotFound
}

type mockReportService struct {
	convertFn     func(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error)
	summaryFn     func(ctx context.Context, actor entity.Actor, id, display string) (*service.RequestSummary, error)
	cacheStatusFn func(base string) ([]currency.CacheStatus, error)
	clearFn       func(ctx context.Context) []currency.CacheStatus
	exportFn      func(ctx context.Context, actor entity.Actor, id, display string) (*service.Export, error)
}

func (m *mockReportService) ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error) {
	if m.convertFn != nil {
		return m.convertFn(ctx, amount, from, to)
	}
	return currency.Conversion{}, nil
}

func (m *mockReportService) GetSummary(ctx context.Context, actor entity.Actor, id, display string) (*service.RequestSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, actor, id, display)
	}
	return nil, errs.ErrNotFound
}

func (m *mockReportService) CacheStatus(base string) ([]currency.CacheStatus, error) {
	if m.cacheStatusFn != nil {
		return m.cacheStatusFn(base)
	}
	return []currency.CacheStatus{}, nil
}

func (m *mockReportService) ClearCache(ctx context.Context) []currency.CacheStatus {
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return []currency.CacheStatus{}
}

func (m *mockReportService) ExportRequest(ctx context.Context, actor entity.Actor, id, display string) (*service.Export, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, actor, id, display)
	}
	return nil, errs.ErrNotFound
}

var (
	_ service.TravelService = (*mockTravelService)(nil)
	_ service.ReportService = (*mockReportService)(nil)
)
