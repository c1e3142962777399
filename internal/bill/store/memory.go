package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

// Memory is the in-memory bill store for dev mode and unit tests. The mutex
// plus the status re-check in UpdateIf gives the same first-writer-wins
// behavior as the conditional UPDATE in postgres.
type Memory struct {
	mu      sync.RWMutex
	bills   map[domain.BillID]models.Bill
	numbers map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		bills:   make(map[domain.BillID]models.Bill),
		numbers: make(map[string]struct{}),
	}
}

func (s *Memory) Create(_ context.Context, bill models.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.numbers[bill.BillNumber]; taken {
		return sentinel.ErrDuplicate
	}
	s.numbers[bill.BillNumber] = struct{}{}
	s.bills[bill.ID] = cloneBill(bill)
	return nil
}

func (s *Memory) Get(_ context.Context, id domain.BillID) (models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bill, ok := s.bills[id]
	if !ok {
		return models.Bill{}, sentinel.ErrNotFound
	}
	return cloneBill(bill), nil
}

func (s *Memory) UpdateIf(_ context.Context, bill models.Bill, expected []models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bills[bill.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !slices.Contains(expected, current.Status) {
		return sentinel.ErrInvalidState
	}
	bill.BillNumber = current.BillNumber // immutable once assigned
	s.bills[bill.ID] = cloneBill(bill)
	return nil
}

func (s *Memory) DeleteIf(_ context.Context, id domain.BillID, expected []models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !slices.Contains(expected, bill.Status) {
		return sentinel.ErrInvalidState
	}
	delete(s.numbers, bill.BillNumber)
	delete(s.bills, id)
	return nil
}

func (s *Memory) List(_ context.Context, f Filter) ([]models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bill
	for _, bill := range s.bills {
		if matches(bill, f) {
			out = append(out, cloneBill(bill))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, bill := range s.bills {
		counts[bill.Status]++
	}
	return counts, nil
}

func matches(bill models.Bill, f Filter) bool {
	if !f.VendorID.IsNil() && bill.VendorID != f.VendorID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, bill.Status) {
		return false
	}
	if f.District != "" && !bill.HasDistrict(f.District) {
		return false
	}
	if f.Month != "" && bill.Month != f.Month {
		return false
	}
	if f.Year != 0 && bill.Year != f.Year {
		return false
	}
	return true
}

// cloneBill deep-copies the slice and pointer fields so callers never alias
// stored state.
func cloneBill(b models.Bill) models.Bill {
	b.Allocations = slices.Clone(b.Allocations)
	b.Documents = slices.Clone(b.Documents)
	b.AuditLog = slices.Clone(b.AuditLog)
	if b.Signature != nil {
		sig := *b.Signature
		b.Signature = &sig
	}
	if b.SubmittedAt != nil {
		t := *b.SubmittedAt
		b.SubmittedAt = &t
	}
	if b.ApprovedAt != nil {
		t := *b.ApprovedAt
		b.ApprovedAt = &t
	}
	if b.RejectedAt != nil {
		t := *b.RejectedAt
		b.RejectedAt = &t
	}
	return b
}
