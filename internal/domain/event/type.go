package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeRequestSubmitted Type = "request.submitted"
	TypeRequestApproved  Type = "request.approved"
	TypeRequestRejected  Type = "request.rejected"
	TypeRequestPaid      Type = "request.paid"
	TypeExpenseReviewed  Type = "expense.reviewed"
)

// Payload keys
const (
	KeyExpenseID      = "expense_id"
	KeyDescription    = "description"
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyNotes          = "notes"
	KeyActorID        = "actor_id"
	KeyApprovedAmount = "approved_amount"
	KeyCurrency       = "currency"
	KeyExpectedDate   = "expected_payment_date"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeRequestSubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestPaid,
		TypeExpenseReviewed:
		return true
	default:
		return false
	}
}

// NotifiesSpeaker returns true for events the requesting speaker hears about
func (t Type) NotifiesSpeaker() bool {
	switch t {
	case TypeRequestApproved, TypeRequestRejected, TypeRequestPaid, TypeExpenseReviewed:
		return true
	}
	return false
}
