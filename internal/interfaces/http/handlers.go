package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/application/service"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/validation"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	travel service.TravelService
	report service.ReportService
	health HealthCheck
	logger Logger

	maxUploadBytes int64
	maxReceiptSize int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	travel service.TravelService,
	report service.ReportService,
	health HealthCheck,
	logger Logger,
) *Handlers {
	return &Handlers{
		travel: travel,
		report: report,
		health: health,
		logger: logger,

		maxUploadBytes: 64 << 20,
		maxReceiptSize: validation.DefaultMaxReceiptSize,
	}
}

// WithUploadLimits sets the request body cap and the per-file ceiling for
// receipt uploads. Non-positive values keep the current limit.
func (h *Handlers) WithUploadLimits(maxUploadBytes, maxReceiptSize int64) *Handlers {
	if maxUploadBytes > 0 {
		h.maxUploadBytes = maxUploadBytes
	}
	if maxReceiptSize > 0 {
		h.maxReceiptSize = maxReceiptSize
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// CreateRequestBody is the body of POST /api/requests
type CreateRequestBody struct {
	ConferenceID string `json:"conferenceId"`
}

// BankingDetailsBody is the body of PUT /api/requests/:id/banking
type BankingDetailsBody struct {
	BeneficiaryName   string `json:"beneficiaryName"`
	BankName          string `json:"bankName"`
	IBAN              string `json:"iban"`
	AccountNumber     string `json:"accountNumber"`
	SwiftCode         string `json:"swiftCode"`
	Country           string `json:"country"`
	PreferredCurrency string `json:"preferredCurrency"`
}

// ExpenseBody is the body of expense create and update. Amount accepts a
// JSON number or a decimal string.
type ExpenseBody struct {
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Amount         json.RawMessage `json:"amount"`
	Currency       string          `json:"currency"`
	CustomCurrency string          `json:"customCurrency"`
	ExpenseDate    string          `json:"expenseDate"`
	Location       string          `json:"location"`
}

// StatusBody is the body of POST /api/requests/:id/status
type StatusBody struct {
	Action              string          `json:"action"`
	ApprovedAmount      json.RawMessage `json:"approvedAmount"`
	ExpectedPaymentDate string          `json:"expectedPaymentDate"`
	ReviewNotes         string          `json:"reviewNotes"`
}

// ExpenseStatusBody is the body of POST /api/requests/:id/expenses/:expenseId/status
type ExpenseStatusBody struct {
	Decision    string `json:"decision"`
	ReviewNotes string `json:"reviewNotes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, details := true, interface{}(nil)
	if h.health != nil {
		healthy, details = h.health()
	}

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: details,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: resp})
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	req, err := h.travel.CreateRequest(c.Request.Context(), actor(c), body.ConferenceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter := port.RequestFilter{
		SpeakerID: c.Query("speakerId"),
		Status:    entity.RequestStatus(strings.ToLower(c.Query("status"))),
	}

	v := errs.NewValidationError("invalid query parameters")
	if filter.Status != "" && !filter.Status.IsValid() {
		v.Add("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	filter.Limit = queryInt(c, "limit", v)
	filter.Offset = queryInt(c, "offset", v)
	if err := v.OrNil(); err != nil {
		h.writeError(c, err)
		return
	}

	requests, err := h.travel.ListRequests(c.Request.Context(), actor(c), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if requests == nil {
		requests = []*entity.TravelSupportRequest{}
	}
	ok(c, http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.travel.GetRequest(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, req)
}

// GetHistory handles GET /api/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.travel.GetHistory(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if history == nil {
		history = []*entity.StatusHistory{}
	}
	ok(c, http.StatusOK, history)
}

// UpdateBankingDetails handles PUT /api/requests/:id/banking
func (h *Handlers) UpdateBankingDetails(c *gin.Context) {
	var body BankingDetailsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	details := entity.BankingDetails{
		BeneficiaryName:   body.BeneficiaryName,
		BankName:          body.BankName,
		IBAN:              body.IBAN,
		AccountNumber:     body.AccountNumber,
		SwiftCode:         body.SwiftCode,
		Country:           body.Country,
		PreferredCurrency: entity.Currency(strings.ToUpper(strings.TrimSpace(body.PreferredCurrency))),
	}

	req, err := h.travel.UpdateBankingDetails(c.Request.Context(), actor(c), c.Param("id"), details)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, req)
}

// AddExpense handles POST /api/requests/:id/expenses
func (h *Handlers) AddExpense(c *gin.Context) {
	in, err := bindExpense(c)
	if errors.Is(err, errMalformedBody) {
		badRequest(c, "invalid request body")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	expense, err := h.travel.AddExpense(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, expense)
}

// UpdateExpense handles PUT /api/requests/:id/expenses/:expenseId
func (h *Handlers) UpdateExpense(c *gin.Context) {
	in, err := bindExpense(c)
	if errors.Is(err, errMalformedBody) {
		badRequest(c, "invalid request body")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	expense, err := h.travel.UpdateExpense(c.Request.Context(), actor(c), c.Param("id"), c.Param("expenseId"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, expense)
}

// DeleteExpense handles DELETE /api/requests/:id/expenses/:expenseId
func (h *Handlers) DeleteExpense(c *gin.Context) {
	if err := h.travel.DeleteExpense(c.Request.Context(), actor(c), c.Param("id"), c.Param("expenseId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadReceipts handles POST /api/requests/:id/expenses/:expenseId/receipts.
// The response lists per-file outcomes; one bad file does not fail the batch.
func (h *Handlers) UploadReceipts(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("upload exceeds %d MB", h.maxUploadBytes>>20),
			})
			return
		}
		badRequest(c, "expected multipart form data")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		h.writeError(c, errs.NewValidationError("no files uploaded").Add("files", "at least one file is required"))
		return
	}

	files := make([]validation.ReceiptFile, 0, len(headers))
	for _, fh := range headers {
		// oversized parts are left unread; the receipt policy refuses them
		// by declared size so the rest of the batch still goes through
		if fh.Size > h.maxReceiptSize {
			files = append(files, validation.ReceiptFile{Filename: fh.Filename, Size: fh.Size})
			continue
		}
		file, err := h.readPart(fh)
		if err != nil {
			badRequest(c, fmt.Sprintf("failed to read %s", fh.Filename))
			return
		}
		files = append(files, file)
	}

	result, err := h.travel.UploadReceipts(c.Request.Context(), actor(c), c.Param("id"), c.Param("expenseId"), files)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Uploaded) == 0 {
		status = http.StatusOK
	}
	ok(c, status, result)
}

// readPart reads at most one byte past the receipt ceiling, enough for
// the policy to see that a part was larger than declared
func (h *Handlers) readPart(fh *multipart.FileHeader) (validation.ReceiptFile, error) {
	f, err := fh.Open()
	if err != nil {
		return validation.ReceiptFile{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxReceiptSize+1))
	if err != nil {
		return validation.ReceiptFile{}, err
	}
	return validation.ReceiptFile{Filename: fh.Filename, Content: content, Size: fh.Size}, nil
}

// DownloadReceipt handles GET /api/requests/:id/expenses/:expenseId/receipts/:receiptId
func (h *Handlers) DownloadReceipt(c *gin.Context) {
	receipt, content, err := h.travel.ReadReceipt(c.Request.Context(), actor(c),
		c.Param("id"), c.Param("expenseId"), c.Param("receiptId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.Filename))
	c.Data(http.StatusOK, receipt.MimeType, content)
}

// DeleteReceipt handles DELETE /api/requests/:id/expenses/:expenseId/receipts/:receiptId
func (h *Handlers) DeleteReceipt(c *gin.Context) {
	err := h.travel.DeleteReceipt(c.Request.Context(), actor(c),
		c.Param("id"), c.Param("expenseId"), c.Param("receiptId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Submit handles POST /api/requests/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	req, err := h.travel.Submit(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdateStatus handles POST /api/requests/:id/status
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var body StatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	v := errs.NewValidationError("invalid status update")
	update := service.StatusUpdate{
		Action:      strings.ToLower(strings.TrimSpace(body.Action)),
		ReviewNotes: body.ReviewNotes,
	}
	if amount, present, err := parseAmount(body.ApprovedAmount); err != nil {
		v.Add("approved_amount", "must be a decimal number")
	} else if present {
		update.ApprovedAmount = decimal.NewNullDecimal(amount)
	}
	date, err := entity.ParseDate(body.ExpectedPaymentDate)
	if err != nil {
		v.Add("expected_payment_date", err.Error())
	}
	update.ExpectedPaymentDate = date
	if err := v.OrNil(); err != nil {
		h.writeError(c, err)
		return
	}

	req, err := h.travel.UpdateStatus(c.Request.Context(), actor(c), c.Param("id"), update)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdateExpenseStatus handles POST /api/requests/:id/expenses/:expenseId/status
func (h *Handlers) UpdateExpenseStatus(c *gin.Context) {
	var body ExpenseStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	decision := entity.Decision(strings.ToLower(strings.TrimSpace(body.Decision)))
	expense, err := h.travel.UpdateExpenseStatus(c.Request.Context(), actor(c),
		c.Param("id"), c.Param("expenseId"), decision, body.ReviewNotes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, expense)
}

var errMalformedBody = errors.New("malformed request body")

// bindExpense decodes an expense body. Parse failures of the amount or
// date come back as field violations rather than a bare 400.
func bindExpense(c *gin.Context) (entity.ExpenseInput, error) {
	var body ExpenseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return entity.ExpenseInput{}, errMalformedBody
	}

	v := errs.NewValidationError("invalid expense")
	in := entity.ExpenseInput{
		Category:       entity.ExpenseCategory(strings.ToLower(strings.TrimSpace(body.Category))),
		Description:    body.Description,
		Currency:       entity.Currency(strings.ToUpper(strings.TrimSpace(body.Currency))),
		CustomCurrency: body.CustomCurrency,
		Location:       body.Location,
	}

	amount, present, err := parseAmount(body.Amount)
	switch {
	case err != nil:
		v.Add(validation.FieldAmount, "must be a decimal number")
	case !present:
		v.Add(validation.FieldAmount, "is required")
	default:
		in.Amount = amount
	}

	date, err := entity.ParseDate(body.ExpenseDate)
	if err != nil {
		v.Add(validation.FieldExpenseDate, err.Error())
	}
	in.ExpenseDate = date

	return in, v.OrNil()
}

// parseAmount reads a JSON number or string. Absent and null are reported
// as not present.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false, nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return decimal.Zero, false, nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, err
	}
	return d, true, nil
}

func queryInt(c *gin.Context, key string, v *errs.ValidationError) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		v.Add(key, "must be a non-negative integer")
		return 0
	}
	return n
}
