package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is an uploaded proof of payment attached to an expense
type Receipt struct {
	ID         string    `json:"id"`
	ExpenseID  string    `json:"expense_id"`
	FileRef    string    `json:"file_ref"`
	URL        string    `json:"url,omitempty"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TravelExpense is one reimbursable line item owned by a request
type TravelExpense struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	Category       ExpenseCategory `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	CustomCurrency string          `json:"custom_currency,omitempty"`
	ExpenseDate    Date            `json:"expense_date"`
	Location       string          `json:"location,omitempty"`
	Receipts       []Receipt       `json:"receipts"`
	Status         ExpenseStatus   `json:"status"`
	ReviewNotes    string          `json:"review_notes,omitempty"`
	ReviewedBy     string          `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CurrencyLabel returns the code to show next to the amount: the custom
// code for OTHER expenses, the currency itself otherwise
func (e *TravelExpense) CurrencyLabel() string {
	if e.Currency == CurrencyOther && e.CustomCurrency != "" {
		return e.CustomCurrency
	}
	return string(e.Currency)
}

// FindReceipt returns the index of the receipt with the given id, or -1
func (e *TravelExpense) FindReceipt(id string) int {
	for i := range e.Receipts {
		if e.Receipts[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the expense
func (e *TravelExpense) Clone() *TravelExpense {
	c := *e
	c.Receipts = append([]Receipt(nil), e.Receipts...)
	if e.ReviewedAt != nil {
		t := *e.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// ExpenseInput carries the speaker-editable fields of an expense
type ExpenseInput struct {
	Category       ExpenseCategory `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	CustomCurrency string          `json:"custom_currency,omitempty"`
	ExpenseDate    Date            `json:"expense_date"`
	Location       string          `json:"location,omitempty"`
}
