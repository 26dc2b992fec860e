package entity

import "time"

// Status history action types
const (
	ActionCreate        = "CREATE"
	ActionSubmit        = "SUBMIT"
	ActionApprove       = "APPROVE"
	ActionReject        = "REJECT"
	ActionMarkPaid      = "MARK_PAID"
	ActionExpenseReview = "EXPENSE_REVIEW"
)

// StatusHistory is one entry of a request's audit trail
type StatusHistory struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ExpenseID      string    `json:"expense_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	Notes          string    `json:"notes,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
