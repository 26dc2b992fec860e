package workflow

import "github.com/garyjia/travel-support/internal/domain/entity"

// State represents a travel support request state
type State string

const (
	StateDraft     State = State(entity.RequestStatusDraft)
	StateSubmitted State = State(entity.RequestStatusSubmitted)
	StateApproved  State = State(entity.RequestStatusApproved)
	StateRejected  State = State(entity.RequestStatusRejected)
	StatePaid      State = State(entity.RequestStatusPaid)
)

var validStates = map[State]bool{
	StateDraft:     true,
	StateSubmitted: true,
	StateApproved:  true,
	StateRejected:  true,
	StatePaid:      true,
}

var terminalStates = map[State]bool{
	StateRejected: true,
	StatePaid:     true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// RequestStatus converts the state to the entity status
func (s State) RequestStatus() entity.RequestStatus {
	return entity.RequestStatus(s)
}
