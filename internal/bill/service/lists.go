package service

import (
	"context"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/internal/bill/store"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// MyBills lists the calling vendor's own bills.
func (s *Service) MyBills(ctx context.Context) ([]models.Bill, error) {
	actor := requestcontext.Actor(ctx)
	if actor.Role != domain.RoleVendor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only vendors have a bill inbox")
	}
	return s.list(ctx, store.Filter{VendorID: actor.ID})
}

// PendingBills lists bills awaiting review, scoped to the verifier's
// district; admins see all districts.
func (s *Service) PendingBills(ctx context.Context) ([]models.Bill, error) {
	return s.reviewList(ctx, models.ReviewStatuses)
}

// ApprovedBills lists approved bills within the caller's review scope.
func (s *Service) ApprovedBills(ctx context.Context) ([]models.Bill, error) {
	return s.reviewList(ctx, []models.Status{models.StatusApproved})
}

// RejectedBills lists rejected bills within the caller's review scope.
func (s *Service) RejectedBills(ctx context.Context) ([]models.Bill, error) {
	return s.reviewList(ctx, []models.Status{models.StatusRejected})
}

func (s *Service) reviewList(ctx context.Context, statuses []models.Status) ([]models.Bill, error) {
	actor := requestcontext.Actor(ctx)
	f := store.Filter{Statuses: statuses}
	switch {
	case actor.Role.IsAdmin():
	case actor.Role == domain.RoleDistrictVerifier:
		f.District = actor.District
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "role not permitted to review bills")
	}
	return s.list(ctx, f)
}

// AdminFilter narrows the admin-wide listing.
type AdminFilter struct {
	Status   string
	Month    string
	Year     int
	VendorID domain.UserID
	District string
}

// AdminBills lists bills across all vendors and districts. Admin only;
// also enforced at the route level.
func (s *Service) AdminBills(ctx context.Context, f AdminFilter) ([]models.Bill, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.Role.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin access required")
	}

	filter := store.Filter{
		VendorID: f.VendorID,
		District: f.District,
		Month:    f.Month,
		Year:     f.Year,
	}
	if f.Status != "" {
		status, ok := models.ParseStatus(f.Status)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
		}
		filter.Statuses = []models.Status{status}
	}
	return s.list(ctx, filter)
}

// StatusCounts returns the simple per-status bill counts for the admin
// dashboard. Every status appears, zero or not.
func (s *Service) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.Role.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin access required")
	}
	counts, err := s.bills.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count bills")
	}
	for _, status := range []models.Status{
		models.StatusDraft, models.StatusSubmitted, models.StatusPending,
		models.StatusApproved, models.StatusRejected, models.StatusResubmitted,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

func (s *Service) list(ctx context.Context, f store.Filter) ([]models.Bill, error) {
	bills, err := s.bills.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list bills")
	}
	return bills, nil
}
