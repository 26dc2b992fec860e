package entity

// Role is the permission level of an actor as reported by the identity provider
type Role string

const (
	RoleSpeaker  Role = "speaker"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// Actor identifies who is performing an operation
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanReview returns true if the role carries review permissions.
// It does not account for ownership; see the self-approval guard.
func (a Actor) CanReview() bool {
	return a.Role == RoleReviewer || a.Role == RoleAdmin
}
