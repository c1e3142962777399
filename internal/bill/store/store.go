// Package store persists bills. Both implementations enforce bill-number
// uniqueness and the conditional status update that keeps concurrent
// transitions from both succeeding.
package store

import (
	"context"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	VendorID domain.UserID
	Statuses []models.Status
	District string // matches any allocation entry, exact
	Month    string
	Year     int
}

// BillStore is the persistence contract for bills.
type BillStore interface {
	// Create inserts a new bill. Returns sentinel.ErrDuplicate when the
	// bill number is already taken.
	Create(ctx context.Context, bill models.Bill) error

	// Get returns a bill by ID or sentinel.ErrNotFound.
	Get(ctx context.Context, id domain.BillID) (models.Bill, error)

	// UpdateIf replaces the stored bill only while its current status is
	// one of expected. Returns sentinel.ErrInvalidState when another
	// writer got there first, sentinel.ErrNotFound when the bill is gone.
	UpdateIf(ctx context.Context, bill models.Bill, expected []models.Status) error

	// DeleteIf removes the bill only while its current status is one of
	// expected, with the same first-writer-wins semantics as UpdateIf.
	// The system audit trail is unaffected.
	DeleteIf(ctx context.Context, id domain.BillID, expected []models.Status) error

	// List returns bills matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]models.Bill, error)

	// CountByStatus returns the number of bills per status.
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}
