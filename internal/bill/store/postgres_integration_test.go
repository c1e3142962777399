//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/internal/bill/store"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
	"github.com/AshishBhandari123/bvas-project/pkg/testutil/containers"
)

type PostgresBillStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresBillStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresBillStoreSuite))
}

func (s *PostgresBillStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	st, err := store.NewPostgres(context.Background(), s.postgres.Pool)
	s.Require().NoError(err)
	s.store = st
}

func (s *PostgresBillStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "bills")
	s.Require().NoError(err)
}

func storedBill(vendor domain.UserID, district string) models.Bill {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.Bill{
		ID:          domain.NewBillID(),
		BillNumber:  models.NewBillNumber(now),
		VendorID:    vendor,
		Month:       "March",
		Year:        2026,
		TotalAmount: 15000,
		Status:      models.StatusDraft,
		Allocations: []models.DistrictAllocation{
			{District: district, Quantity: 100, Amount: 15000},
		},
		AuditLog: []models.AuditEntry{
			{Action: "CREATE_BILL", PerformedBy: vendor, PerformedAt: now},
		},
		CreatedAt: now,
	}
}

func (s *PostgresBillStoreSuite) TestCreateAndGetRoundTrip() {
	ctx := context.Background()
	vendor := domain.NewUserID()
	b := storedBill(vendor, "Dehradun")
	b.Documents = []models.Document{{
		ID:           domain.NewDocumentID(),
		OriginalName: "invoice.pdf",
		Handle:       "abc123.pdf",
		ContentType:  "application/pdf",
		Size:         2048,
		UploadedAt:   b.CreatedAt,
	}}
	s.Require().NoError(s.store.Create(ctx, b))

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(b.BillNumber, got.BillNumber)
	s.Equal(vendor, got.VendorID)
	s.Equal(models.StatusDraft, got.Status)
	s.Require().Len(got.Allocations, 1)
	s.Equal("Dehradun", got.Allocations[0].District)
	s.Require().Len(got.Documents, 1)
	s.Equal("invoice.pdf", got.Documents[0].OriginalName)
	s.Require().Len(got.AuditLog, 1)
	s.Equal("CREATE_BILL", got.AuditLog[0].Action)
}

func (s *PostgresBillStoreSuite) TestDuplicateBillNumber() {
	ctx := context.Background()
	first := storedBill(domain.NewUserID(), "Dehradun")
	s.Require().NoError(s.store.Create(ctx, first))

	dup := storedBill(domain.NewUserID(), "Hardwar")
	dup.BillNumber = first.BillNumber
	err := s.store.Create(ctx, dup)
	s.True(errors.Is(err, sentinel.ErrDuplicate))
}

func (s *PostgresBillStoreSuite) TestUpdateIfWrongExpectedStatus() {
	ctx := context.Background()
	b := storedBill(domain.NewUserID(), "Dehradun")
	s.Require().NoError(s.store.Create(ctx, b))

	b.Status = models.StatusApproved
	err := s.store.UpdateIf(ctx, b, []models.Status{models.StatusSubmitted})
	s.True(errors.Is(err, sentinel.ErrInvalidState))

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)
}

func (s *PostgresBillStoreSuite) TestUpdateIfMissingBill() {
	b := storedBill(domain.NewUserID(), "Dehradun")
	err := s.store.UpdateIf(context.Background(), b, []models.Status{models.StatusDraft})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

// TestConcurrentApproval verifies first-writer-wins at the database level:
// many racers move the same submitted bill to approved, exactly one succeeds.
func (s *PostgresBillStoreSuite) TestConcurrentApproval() {
	ctx := context.Background()
	b := storedBill(domain.NewUserID(), "Dehradun")
	b.Status = models.StatusSubmitted
	s.Require().NoError(s.store.Create(ctx, b))

	const racers = 16
	var wg sync.WaitGroup
	var wins, losses atomic.Int32

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			approved := b
			approved.Status = models.StatusApproved
			approved.ApprovedBy = domain.NewUserID()
			err := s.store.UpdateIf(ctx, approved, models.ReviewStatuses)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(racers-1), losses.Load())

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
}

func (s *PostgresBillStoreSuite) TestListDistrictFilter() {
	ctx := context.Background()
	vendor := domain.NewUserID()
	dehradun := storedBill(vendor, "Dehradun")
	hardwar := storedBill(vendor, "Hardwar")
	s.Require().NoError(s.store.Create(ctx, dehradun))
	s.Require().NoError(s.store.Create(ctx, hardwar))

	got, err := s.store.List(ctx, store.Filter{District: "Dehradun"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(dehradun.ID, got[0].ID)

	// Case-sensitive exact match.
	got, err = s.store.List(ctx, store.Filter{District: "dehradun"})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresBillStoreSuite) TestListVendorAndStatusFilters() {
	ctx := context.Background()
	vendor := domain.NewUserID()
	draft := storedBill(vendor, "Dehradun")
	submitted := storedBill(vendor, "Dehradun")
	submitted.Status = models.StatusSubmitted
	other := storedBill(domain.NewUserID(), "Dehradun")
	s.Require().NoError(s.store.Create(ctx, draft))
	s.Require().NoError(s.store.Create(ctx, submitted))
	s.Require().NoError(s.store.Create(ctx, other))

	got, err := s.store.List(ctx, store.Filter{VendorID: vendor})
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.List(ctx, store.Filter{
		VendorID: vendor,
		Statuses: []models.Status{models.StatusSubmitted},
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(submitted.ID, got[0].ID)
}

func (s *PostgresBillStoreSuite) TestDeleteAndCount() {
	ctx := context.Background()
	draft := storedBill(domain.NewUserID(), "Dehradun")
	submitted := storedBill(domain.NewUserID(), "Hardwar")
	submitted.Status = models.StatusSubmitted
	s.Require().NoError(s.store.Create(ctx, draft))
	s.Require().NoError(s.store.Create(ctx, submitted))

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[models.StatusDraft])
	s.Equal(1, counts[models.StatusSubmitted])

	s.Require().NoError(s.store.DeleteIf(ctx, draft.ID, []models.Status{models.StatusDraft}))
	_, err = s.store.Get(ctx, draft.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	err = s.store.DeleteIf(ctx, draft.ID, []models.Status{models.StatusDraft})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

// DeleteIf must not remove a bill whose status moved on after the caller
// last observed it.
func (s *PostgresBillStoreSuite) TestDeleteIfStaleStatus() {
	ctx := context.Background()
	b := storedBill(domain.NewUserID(), "Dehradun")
	b.Status = models.StatusSubmitted
	s.Require().NoError(s.store.Create(ctx, b))

	err := s.store.DeleteIf(ctx, b.ID, []models.Status{models.StatusDraft})
	s.True(errors.Is(err, sentinel.ErrInvalidState))

	got, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, got.Status)
}
