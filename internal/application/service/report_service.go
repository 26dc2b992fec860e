package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/currency"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/review"
	"github.com/garyjia/travel-support/internal/domain/travel"
	"github.com/garyjia/travel-support/internal/summary"
)

// RateCache is the part of the exchange-rate cache operators can inspect
type RateCache interface {
	Status(base entity.Currency) currency.CacheStatus
	Bases() []entity.Currency
	Refresh(ctx context.Context, base entity.Currency) error
	Clear()
}

// RequestSummary is the reviewer-facing view of a request's money
type RequestSummary struct {
	RequestID         string               `json:"request_id"`
	Status            entity.RequestStatus `json:"status"`
	Summary           *summary.Summary     `json:"summary"`
	TotalReimbursable review.Amount        `json:"total_reimbursable"`
	ApprovedAmount    review.Amount        `json:"approved_amount"`
}

// Export is a rendered request report
type Export struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReportService serves conversions, summaries and exports
type ReportService interface {
	ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error)
	GetSummary(ctx context.Context, actor entity.Actor, id, display string) (*RequestSummary, error)
	CacheStatus(base string) ([]currency.CacheStatus, error)
	ClearCache(ctx context.Context) []currency.CacheStatus
	ExportRequest(ctx context.Context, actor entity.Actor, id, display string) (*Export, error)
}

type reportServiceImpl struct {
	repos           Repositories
	converter       summary.Converter
	cache           RateCache
	reviews         *review.Engine
	exporter        port.ReportExporter
	defaultCurrency entity.Currency
	logger          Logger
}

// NewReportService creates a new ReportService. defaultCurrency is used
// when neither the caller nor the request names a display currency.
func NewReportService(
	repos Repositories,
	converter summary.Converter,
	cache RateCache,
	exporter port.ReportExporter,
	defaultCurrency entity.Currency,
	logger Logger,
) ReportService {
	if !defaultCurrency.IsSupported() {
		defaultCurrency = entity.CurrencyNOK
	}
	return &reportServiceImpl{
		repos:           repos,
		converter:       converter,
		cache:           cache,
		reviews:         review.NewEngine(converter),
		exporter:        exporter,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// ConvertCurrency converts a single amount. Rate problems come back as a
// notice on the result, not as an error.
func (s *reportServiceImpl) ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error) {
	v := errs.NewValidationError("invalid conversion")
	fromCur, ok := entity.ParseCurrency(from)
	if !ok {
		v.Add("from", fmt.Sprintf("unsupported currency %q", from))
	}
	toCur, ok := entity.ParseCurrency(to)
	if !ok {
		v.Add("to", fmt.Sprintf("unsupported currency %q", to))
	}
	if amount.IsNegative() {
		v.Add("amount", "must not be negative")
	}
	if err := v.OrNil(); err != nil {
		return currency.Conversion{}, err
	}

	return s.converter.Convert(ctx, amount, fromCur, toCur)
}

// GetSummary totals a request in the display currency. An empty display
// falls back to the speaker's preferred currency, then the default.
func (s *reportServiceImpl) GetSummary(ctx context.Context, actor entity.Actor, id, display string) (*RequestSummary, error) {
	_, rs, err := s.summarize(ctx, actor, id, display)
	return rs, err
}

func (s *reportServiceImpl) summarize(ctx context.Context, actor entity.Actor, id, display string) (*entity.TravelSupportRequest, *RequestSummary, error) {
	req, err := s.repos.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := travel.AuthorizeRead(req, actor); err != nil {
		return nil, nil, err
	}

	target, err := s.displayCurrency(req, display)
	if err != nil {
		return nil, nil, err
	}

	sum, err := summary.Summarize(ctx, s.converter, req.Expenses, target)
	if err != nil {
		return nil, nil, err
	}
	total, err := s.reviews.TotalReimbursable(ctx, req, target)
	if err != nil {
		return nil, nil, err
	}
	approved, err := s.reviews.ApprovedAmount(ctx, req, target)
	if err != nil {
		return nil, nil, err
	}

	if !sum.Complete() {
		s.logger.Warn("Summary is best-effort", "request_id", id, "currency", target, "stale", sum.Stale, "unconverted", len(sum.Unconverted))
	}

	return req, &RequestSummary{
		RequestID:         req.ID,
		Status:            req.Status,
		Summary:           sum,
		TotalReimbursable: total,
		ApprovedAmount:    approved,
	}, nil
}

// CacheStatus reports the cached table for base, or for every cached base
// when base is empty
func (s *reportServiceImpl) CacheStatus(base string) ([]currency.CacheStatus, error) {
	if base == "" {
		bases := s.cache.Bases()
		out := make([]currency.CacheStatus, 0, len(bases))
		for _, b := range bases {
			out = append(out, s.cache.Status(b))
		}
		return out, nil
	}

	cur, ok := entity.ParseCurrency(base)
	if !ok || !cur.IsSupported() {
		return nil, errs.NewValidationError("invalid base currency").
			Add("base", fmt.Sprintf("unsupported currency %q", base))
	}
	return []currency.CacheStatus{s.cache.Status(cur)}, nil
}

// ClearCache drops every cached table and immediately refetches the bases
// that were cached. Failed refetches are reported in the returned status.
func (s *reportServiceImpl) ClearCache(ctx context.Context) []currency.CacheStatus {
	bases := s.cache.Bases()
	s.cache.Clear()

	out := make([]currency.CacheStatus, 0, len(bases))
	for _, b := range bases {
		if err := s.cache.Refresh(ctx, b); err != nil {
			s.logger.Warn("Refetch after cache clear failed", "base", b, "error", err)
		}
		out = append(out, s.cache.Status(b))
	}

	s.logger.Info("Exchange rate cache cleared", "refetched", len(bases))
	return out
}

// ExportRequest renders a request with its totals
func (s *reportServiceImpl) ExportRequest(ctx context.Context, actor entity.Actor, id, display string) (*Export, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("export is not configured")
	}

	req, rs, err := s.summarize(ctx, actor, id, display)
	if err != nil {
		return nil, err
	}

	content, err := s.exporter.Export(ctx, req, rs.Summary)
	if err != nil {
		s.logger.Error("Failed to export request", "error", err, "request_id", id)
		return nil, fmt.Errorf("export request: %w", err)
	}

	s.logger.Info("Request exported", "request_id", id, "bytes", len(content))
	return &Export{
		Filename:    fmt.Sprintf("travel-support-%s%s", id, s.exporter.FileExtension()),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}, nil
}

func (s *reportServiceImpl) displayCurrency(req *entity.TravelSupportRequest, display string) (entity.Currency, error) {
	if display == "" {
		if req.BankingDetails.PreferredCurrency.IsSupported() {
			return req.BankingDetails.PreferredCurrency, nil
		}
		return s.defaultCurrency, nil
	}

	cur, ok := entity.ParseCurrency(display)
	if !ok || !cur.IsSupported() {
		return "", errs.NewValidationError("invalid display currency").
			Add("currency", fmt.Sprintf("unsupported currency %q", display))
	}
	return cur, nil
}
