package entity

// RequestStatus is the lifecycle state of a TravelSupportRequest
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "draft"
	RequestStatusSubmitted RequestStatus = "submitted"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusPaid      RequestStatus = "paid"
)

// String returns the string representation of the status
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the defined request statuses
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusDraft, RequestStatusSubmitted, RequestStatusApproved, RequestStatusRejected, RequestStatusPaid:
		return true
	}
	return false
}

// ExpenseStatus is the review state of a single TravelExpense
type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// IsValid returns true if the status is one of the defined expense statuses
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// ExpenseCategory classifies a TravelExpense
type ExpenseCategory string

const (
	CategoryAccommodation  ExpenseCategory = "accommodation"
	CategoryTransportation ExpenseCategory = "transportation"
	CategoryMeals          ExpenseCategory = "meals"
	CategoryVisa           ExpenseCategory = "visa"
	CategoryOther          ExpenseCategory = "other"
)

// IsValid returns true if the category is one of the defined categories
func (c ExpenseCategory) IsValid() bool {
	switch c {
	case CategoryAccommodation, CategoryTransportation, CategoryMeals, CategoryVisa, CategoryOther:
		return true
	}
	return false
}

// Decision is a reviewer verdict on an expense or a request
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ExpenseStatus maps the decision to the resulting expense status
func (d Decision) ExpenseStatus() (ExpenseStatus, bool) {
	switch d {
	case DecisionApprove:
		return ExpenseStatusApproved, true
	case DecisionReject:
		return ExpenseStatusRejected, true
	}
	return "", false
}
