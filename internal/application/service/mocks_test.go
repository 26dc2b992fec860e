package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/travel-support/internal/application/dispatcher"
	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/event"
	"github.com/garyjia/travel-support/internal/summary"
)

// memStore backs every repository mock with maps so service tests can
// round-trip an aggregate
type memStore struct {
	mu       sync.Mutex
	requests map[string]*entity.TravelSupportRequest
	expenses map[string]*entity.TravelExpense
	receipts map[string]entity.Receipt
	history  []*entity.StatusHistory
}

func newMemStore() *memStore {
	return &memStore{
		requests: map[string]*entity.TravelSupportRequest{},
		expenses: map[string]*entity.TravelExpense{},
		receipts: map[string]entity.Receipt{},
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Requests: &mockRequestRepo{store: m},
		Expenses: &mockExpenseRepo{store: m},
		Receipts: &mockReceiptRepo{store: m},
		History:  &mockHistoryRepo{store: m},
	}
}

type mockRequestRepo struct {
	store *memStore
}

func (r *mockRequestRepo) Create(ctx context.Context, req *entity.TravelSupportRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := req.Clone()
	c.Expenses = nil
	r.store.requests[req.ID] = c
	return nil
}

func (r *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.TravelSupportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.requests[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return req.Clone(), nil
}

func (r *mockRequestRepo) Update(ctx context.Context, req *entity.TravelSupportRequest, expected entity.RequestStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.requests[req.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if current.Status != expected {
		return fmt.Errorf("request %s is no longer %s: %w", req.ID, expected, errs.ErrConflict)
	}
	c := req.Clone()
	c.Expenses = nil
	r.store.requests[req.ID] = c
	return nil
}

func (r *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter) ([]*entity.TravelSupportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.TravelSupportRequest
	for _, req := range r.store.requests {
		if filter.SpeakerID != "" && req.SpeakerID != filter.SpeakerID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockExpenseRepo struct {
	store *memStore
}

func (r *mockExpenseRepo) Create(ctx context.Context, e *entity.TravelExpense) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := e.Clone()
	c.Receipts = nil
	r.store.expenses[e.ID] = c
	return nil
}

func (r *mockExpenseRepo) Update(ctx context.Context, e *entity.TravelExpense) error {
	return r.Create(ctx, e)
}

func (r *mockExpenseRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.expenses[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.store.expenses, id)
	return nil
}

func (r *mockExpenseRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.TravelExpense, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.TravelExpense
	for _, e := range r.store.expenses {
		if e.RequestID == requestID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type mockReceiptRepo struct {
	store      *memStore
	createFunc func(ctx context.Context, r *entity.Receipt) error
}

func (r *mockReceiptRepo) Create(ctx context.Context, rc *entity.Receipt) error {
	if r.createFunc != nil {
		return r.createFunc(ctx, rc)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.receipts[rc.ID] = *rc
	return nil
}

func (r *mockReceiptRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.receipts, id)
	return nil
}

func (r *mockReceiptRepo) GetByRequestID(ctx context.Context, requestID string) ([]entity.Receipt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.Receipt
	for _, rc := range r.store.receipts {
		if e, ok := r.store.expenses[rc.ExpenseID]; ok && e.RequestID == requestID {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockHistoryRepo struct {
	store *memStore
}

func (r *mockHistoryRepo) Create(ctx context.Context, h *entity.StatusHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	h.ID = int64(len(r.store.history) + 1)
	r.store.history = append(r.store.history, h)
	return nil
}

func (r *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.StatusHistory
	for _, h := range r.store.history {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockStorage struct {
	mu       sync.Mutex
	files    map[string][]byte
	saveFunc func(ctx context.Context, key string, content []byte) (port.StoredFile, error)
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: map[string][]byte{}}
}

func (m *mockStorage) Save(ctx context.Context, key string, content []byte) (port.StoredFile, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, key, content)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = content
	return port.StoredFile{Ref: key, URL: "/files/" + key}, nil
}

func (m *mockStorage) Read(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[ref]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

func (m *mockStorage) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, ref)
	return nil
}

func (m *mockStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// mockDispatcher records published events synchronously
type mockDispatcher struct {
	mu        sync.Mutex
	published []*event.Event
}

func (m *mockDispatcher) Subscribe(name string, handler dispatcher.Handler, types ...event.Type) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.Publish(ctx, evt)
	return nil
}

func (m *mockDispatcher) Publish(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, evt)
}

func (m *mockDispatcher) Handlers(eventType event.Type) []string { return nil }
func (m *mockDispatcher) Close() error                          { return nil }

func (m *mockDispatcher) Types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.published))
	for i, e := range m.published {
		out[i] = e.Type
	}
	return out
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, speakerID, message string) error
	sent       []string
}

func (m *mockNotifier) NotifySpeaker(ctx context.Context, speakerID, message string) error {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, speakerID, message)
	}
	m.sent = append(m.sent, speakerID+": "+message)
	return nil
}

type mockExporter struct {
	exportFunc func(ctx context.Context, req *entity.TravelSupportRequest, s *summary.Summary) ([]byte, error)
}

func (m *mockExporter) ContentType() string   { return "text/plain" }
func (m *mockExporter) FileExtension() string { return ".txt" }

func (m *mockExporter) Export(ctx context.Context, req *entity.TravelSupportRequest, s *summary.Summary) ([]byte, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, req, s)
	}
	return []byte(fmt.Sprintf("%s %s %s", req.ID, s.Currency, s.GrandTotal.StringFixed(2))), nil
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
}
