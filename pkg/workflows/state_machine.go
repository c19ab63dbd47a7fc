package workflows

import "fmt"

// StateMachine enforces status transitions of a record lifecycle
type StateMachine struct {
	name               string
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an explicit transition table.
// A state mapped to an empty list is terminal.
func NewStateMachine(name string, transitions map[string][]string) *StateMachine {
	return &StateMachine{name: name, allowedTransitions: transitions}
}

// NewVerificationMachine governs verification submissions. credit_issued is
// reachable only from approved and is the point after which no reviewer
// decision applies.
func NewVerificationMachine() *StateMachine {
	return NewStateMachine("verification", map[string][]string{
		"pending":             {"under_review", "approved", "rejected", "more_data_requested"},
		"under_review":        {"approved", "rejected", "more_data_requested"},
		"more_data_requested": {"pending", "under_review", "approved", "rejected"},
		"approved":            {"credit_issued"},
		"rejected":            {},
		"credit_issued":       {},
	})
}

// NewProjectMachine governs project status changes.
func NewProjectMachine() *StateMachine {
	return NewStateMachine("project", map[string][]string{
		"planning":  {"active", "cancelled"},
		"active":    {"completed", "suspended", "cancelled"},
		"suspended": {"active", "cancelled"}, // Allow resuming suspended projects
		"completed": {},
		"cancelled": {},
	})
}

// NewUploadMachine governs data upload processing. Submission for
// verification is driven by the verification workflow, not by status edits.
func NewUploadMachine() *StateMachine {
	return NewStateMachine("upload", map[string][]string{
		"uploaded":                   {"processing", "validated", "rejected", "submitted_for_verification"},
		"processing":                 {"validated", "rejected", "submitted_for_verification"},
		"validated":                  {"submitted_for_verification", "processing"},
		"rejected":                   {"processing", "submitted_for_verification"},
		"submitted_for_verification": {},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns an error describing why from -> to is not allowed.
func (sm *StateMachine) Transition(from, to string) error {
	if sm.CanTransition(from, to) {
		return nil
	}
	if sm.IsTerminal(from) {
		return fmt.Errorf("%s is already %s", sm.name, from)
	}
	return fmt.Errorf("cannot move %s from %s to %s", sm.name, from, to)
}

// IsTerminal reports whether no transition leaves the status.
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// IsKnown reports whether the status belongs to this lifecycle.
func (sm *StateMachine) IsKnown(status string) bool {
	_, exists := sm.allowedTransitions[status]
	return exists
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed := sm.allowedTransitions[from]
	out := make([]string, len(allowed))
	copy(out, allowed)
	return out
}

// NextSteps is a record's current status and the statuses it may move to.
type NextSteps struct {
	Status  string   `json:"status"`
	Allowed []string `json:"allowed"`
}

func (sm *StateMachine) NextSteps(from string) NextSteps {
	return NextSteps{Status: from, Allowed: sm.GetAllowedTransitions(from)}
}
