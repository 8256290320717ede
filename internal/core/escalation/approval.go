package escalation

import "fmt"

// ApprovalState is where an emergency-fund request stands.
//
// AutoApproved and Pending are the only states a request starts in. Pending
// may later move to Approved or Denied once an approver answers; every other
// state is final.
type ApprovalState string

const (
	StatePending      ApprovalState = "PENDING"
	StateApproved     ApprovalState = "APPROVED"
	StateDenied       ApprovalState = "DENIED"
	StateAutoApproved ApprovalState = "AUTO_APPROVED"
)

// Approved reports whether funds may be released in this state.
func (s ApprovalState) Approved() bool {
	return s == StateApproved || s == StateAutoApproved
}

// Final reports whether no further transition is possible.
func (s ApprovalState) Final() bool {
	return s != StatePending
}

// Transition moves s to next or explains why it cannot.
func (s ApprovalState) Transition(next ApprovalState) (ApprovalState, error) {
	if s == StatePending && (next == StateApproved || next == StateDenied) {
		return next, nil
	}
	return s, fmt.Errorf("cannot move emergency request from %s to %s", s, next)
}
