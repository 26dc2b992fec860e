package workflow

// Guards supplies the transition guards of the request lifecycle. Any
// field left nil permits the transition unconditionally.
type Guards struct {
	Submit   GuardFunc
	Approve  GuardFunc
	Reject   GuardFunc
	MarkPaid GuardFunc
}

// NewRequestMachine builds the request lifecycle:
//
//	draft -> submitted -> approved -> paid
//	              \-> rejected
//
// Rejected and paid are terminal. There is no way back to draft.
func NewRequestMachine(initial State, g Guards) StateMachine {
	b := NewBuilder()

	b.Configure(StateDraft).
		PermitIf(TriggerSubmit, StateSubmitted, g.Submit)

	b.Configure(StateSubmitted).
		PermitIf(TriggerApprove, StateApproved, g.Approve).
		PermitIf(TriggerReject, StateRejected, g.Reject)

	b.Configure(StateApproved).
		PermitIf(TriggerMarkPaid, StatePaid, g.MarkPaid)

	return b.Build(initial)
}
