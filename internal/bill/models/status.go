package models

// Status is a bill's lifecycle state. Wire values are stable.
//
// "submitted" and "pending" are two labels for the same reviewable state,
// inherited from parallel legacy vocabularies. Internal logic never branches
// on which label was stored; use AwaitingReview.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusResubmitted Status = "resubmitted"
)

// ParseStatus validates a wire status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusPending, StatusApproved,
		StatusRejected, StatusResubmitted:
		return Status(s), true
	}
	return "", false
}

func (s Status) String() string { return string(s) }

// AwaitingReview reports whether the bill is eligible for approve/reject.
// Resubmitted bills re-enter review directly.
func (s Status) AwaitingReview() bool {
	return s == StatusSubmitted || s == StatusPending || s == StatusResubmitted
}

// ReviewStatuses are the states approve/reject accept as source states.
var ReviewStatuses = []Status{StatusSubmitted, StatusPending, StatusResubmitted}

// EditableStatuses are the states a vendor may update from.
var EditableStatuses = []Status{StatusDraft, StatusRejected}
