package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankingDetails holds where the reimbursement is paid to
type BankingDetails struct {
	BeneficiaryName   string   `json:"beneficiary_name"`
	BankName          string   `json:"bank_name"`
	IBAN              string   `json:"iban,omitempty"`
	AccountNumber     string   `json:"account_number,omitempty"`
	SwiftCode         string   `json:"swift_code,omitempty"`
	Country           string   `json:"country"`
	PreferredCurrency Currency `json:"preferred_currency"`
}

// TravelSupportRequest is one speaker's reimbursement case for one conference
type TravelSupportRequest struct {
	ID                  string              `json:"id"`
	SpeakerID           string              `json:"speaker_id"`
	ConferenceID        string              `json:"conference_id"`
	BankingDetails      BankingDetails      `json:"banking_details"`
	Expenses            []*TravelExpense    `json:"expenses"`
	Status              RequestStatus       `json:"status"`
	ApprovedAmount      decimal.NullDecimal `json:"approved_amount"`
	ExpectedPaymentDate Date                `json:"expected_payment_date"`
	ReviewNotes         string              `json:"review_notes,omitempty"`
	ReviewedBy          string              `json:"reviewed_by,omitempty"`
	SubmittedAt         *time.Time          `json:"submitted_at,omitempty"`
	ReviewedAt          *time.Time          `json:"reviewed_at,omitempty"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// IsEditable returns true while banking details and expenses may change
func (r *TravelSupportRequest) IsEditable() bool {
	return r.Status == RequestStatusDraft
}

// FindExpense returns the index of the expense with the given id, or -1
func (r *TravelSupportRequest) FindExpense(id string) int {
	for i, e := range r.Expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Expense returns the expense with the given id, or nil
func (r *TravelSupportRequest) Expense(id string) *TravelExpense {
	if i := r.FindExpense(id); i >= 0 {
		return r.Expenses[i]
	}
	return nil
}

// Clone returns a deep copy of the request and its expenses
func (r *TravelSupportRequest) Clone() *TravelSupportRequest {
	c := *r
	c.Expenses = make([]*TravelExpense, len(r.Expenses))
	for i, e := range r.Expenses {
		c.Expenses[i] = e.Clone()
	}
	c.SubmittedAt = cloneTime(r.SubmittedAt)
	c.ReviewedAt = cloneTime(r.ReviewedAt)
	c.PaidAt = cloneTime(r.PaidAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
