// Package audit is the system-wide, append-only trail of state-changing
// actions. Appends are advisory: a failed audit write is logged and counted
// but never blocks or rolls back the business operation that triggered it.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// Entity types recorded in the trail.
const (
	EntityBill = "Bill"
	EntityUser = "User"
)

// Action tags. Wire-stable; the admin listing filters on them.
const (
	ActionRegister   = "REGISTER"
	ActionLogin      = "LOGIN"
	ActionLogout     = "LOGOUT"
	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"

	ActionCreateBill  = "CREATE_BILL"
	ActionUpdateBill  = "UPDATE_BILL"
	ActionSubmitBill  = "SUBMIT_BILL"
	ActionApproveBill = "APPROVE_BILL"
	ActionRejectBill  = "REJECT_BILL"
	ActionDeleteBill  = "DELETE_BILL"
)

// Entry is one appended trail record. Entries are never mutated or removed;
// a bill's hard deletion leaves its trail entries in place.
type Entry struct {
	ID          uuid.UUID
	Action      string
	EntityType  string
	EntityID    string
	PerformedBy domain.UserID
	PerformedAt time.Time
	Details     string
	IPAddress   string
	UserAgent   string
}

// Query filters the admin listing. Zero fields match everything.
type Query struct {
	EntityType string
	EntityID   string
	Action     string
	Page       int
	Limit      int
}

// Normalize applies the default paging window.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 500 {
		q.Limit = 50
	}
	return q
}
