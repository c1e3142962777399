// Package policy is the pure authorization gate for bill lifecycle
// transitions and read scoping. It has no side effects and no knowledge of
// HTTP or storage, so every rule is directly unit-testable.
package policy

import (
	"strings"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// Operation is a lifecycle transition a caller may attempt on a bill.
type Operation string

const (
	OpUpdate  Operation = "update"
	OpSubmit  Operation = "submit"
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
	OpDelete  Operation = "delete"
)

// DenyReason classifies why a transition was refused.
type DenyReason string

const (
	DenyNotAuthenticated     DenyReason = "not-authenticated"
	DenyRoleForbidden        DenyReason = "role-forbidden"
	DenyNotOwner             DenyReason = "not-owner"
	DenyDistrictMismatch     DenyReason = "district-mismatch"
	DenyInvalidSourceState   DenyReason = "invalid-source-state"
	DenyMissingRequiredField DenyReason = "missing-required-field"
)

// Decision is the outcome of a CanTransition check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Request carries the operation and the operation-specific fields the
// guards inspect. Remarks matters only for reject.
type Request struct {
	Operation Operation
	Remarks   string
}

// CanTransition decides whether the actor may perform the operation on the
// bill in its current state. Checks run in a fixed order: authentication,
// role, ownership or district match, source state, required fields. The
// caller mutates nothing unless the decision allows.
func CanTransition(actor domain.Actor, bill models.Bill, req Request) Decision {
	if actor.IsZero() {
		return deny(DenyNotAuthenticated)
	}

	switch req.Operation {
	case OpUpdate, OpSubmit, OpDelete:
		return canVendorOp(actor, bill, req.Operation)
	case OpApprove, OpReject:
		return canReviewOp(actor, bill, req)
	}
	return deny(DenyRoleForbidden)
}

func canVendorOp(actor domain.Actor, bill models.Bill, op Operation) Decision {
	if actor.Role != domain.RoleVendor {
		return deny(DenyRoleForbidden)
	}
	if bill.VendorID != actor.ID {
		return deny(DenyNotOwner)
	}

	switch op {
	case OpUpdate:
		if bill.Status != models.StatusDraft && bill.Status != models.StatusRejected {
			return deny(DenyInvalidSourceState)
		}
	case OpSubmit:
		if bill.Status != models.StatusDraft {
			return deny(DenyInvalidSourceState)
		}
	case OpDelete:
		if bill.Status != models.StatusDraft {
			return deny(DenyInvalidSourceState)
		}
	}
	return allow()
}

func canReviewOp(actor domain.Actor, bill models.Bill, req Request) Decision {
	switch {
	case actor.Role.IsAdmin():
		// Admins bypass district matching.
	case actor.Role == domain.RoleDistrictVerifier:
		if !bill.HasDistrict(actor.District) {
			return deny(DenyDistrictMismatch)
		}
	default:
		return deny(DenyRoleForbidden)
	}

	if !bill.Status.AwaitingReview() {
		return deny(DenyInvalidSourceState)
	}
	if req.Operation == OpReject && strings.TrimSpace(req.Remarks) == "" {
		return deny(DenyMissingRequiredField)
	}
	return allow()
}

// CanRead decides read visibility: vendors see their own bills, verifiers
// see bills allocating to their district, admins see everything. Callers
// report scoped-out bills as not found, never as forbidden.
func CanRead(actor domain.Actor, bill models.Bill) bool {
	if actor.IsZero() {
		return false
	}
	switch {
	case actor.Role.IsAdmin():
		return true
	case actor.Role == domain.RoleDistrictVerifier:
		return bill.HasDistrict(actor.District)
	default:
		return bill.VendorID == actor.ID
	}
}
