package models

import "slices"

// Status is the lifecycle state of a screening record.
type Status string

const (
	StatusPending               Status = "pending"
	StatusSubmitted             Status = "submitted"
	StatusInProgress            Status = "in_progress"
	StatusClear                 Status = "clear"
	StatusPendingAdverse        Status = "pending_adverse"
	StatusAccountCreationFailed Status = "account_creation_failed"
	StatusProcessingFailed      Status = "processing_failed"
	StatusCancelled             Status = "cancelled"
)

// transitions lists every legal edge. Anything absent is rejected.
var transitions = map[Status][]Status{
	StatusPending:               {StatusSubmitted, StatusProcessingFailed, StatusCancelled},
	StatusSubmitted:             {StatusInProgress, StatusProcessingFailed, StatusCancelled},
	StatusInProgress:            {StatusClear, StatusPendingAdverse, StatusProcessingFailed, StatusCancelled},
	StatusClear:                 {StatusAccountCreationFailed},
	StatusAccountCreationFailed: {StatusClear},
	StatusPendingAdverse:        nil,
	StatusProcessingFailed:      nil,
	StatusCancelled:             nil,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusSubmitted, StatusInProgress, StatusClear,
		StatusPendingAdverse, StatusAccountCreationFailed, StatusProcessingFailed, StatusCancelled,
	}
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether s -> next is a legal edge.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Terminal reports whether no automated step will move the record further.
// A clear record is only terminal once provisioning has completed, which
// Record.Terminal accounts for.
func (s Status) Terminal() bool {
	switch s {
	case StatusProcessingFailed, StatusCancelled, StatusPendingAdverse:
		return true
	}
	return false
}

// Active reports whether the record blocks a new screening for its email.
func (s Status) Active() bool {
	return s != StatusProcessingFailed && s != StatusCancelled
}

// Failed reports whether the record ended without a screening result.
func (s Status) Failed() bool {
	return s == StatusProcessingFailed || s == StatusCancelled
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsValid()
}

// ReviewStatuses are the states an operator needs to act on.
func ReviewStatuses() []Status {
	return []Status{StatusProcessingFailed, StatusPendingAdverse, StatusAccountCreationFailed}
}
