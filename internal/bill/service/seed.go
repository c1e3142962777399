package service

import (
	"context"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/internal/bill/store"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// SeedBills creates a handful of demo bills through the regular lifecycle
// operations so seeded data carries real audit history. No-op when any
// bills already exist. vendors are the demo vendor accounts, in order.
func (s *Service) SeedBills(ctx context.Context, vendors []domain.Actor) error {
	if len(vendors) < 2 {
		return nil
	}
	existing, err := s.bills.List(ctx, store.Filter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	type demo struct {
		vendor domain.Actor
		input  models.BillInput
		submit bool
	}
	demos := []demo{
		{
			vendor: vendors[0],
			input: models.BillInput{
				Month: "March", Year: 2025, TotalAmount: 15000,
				Allocations: []models.DistrictAllocation{
					{District: "Dehradun", Quantity: 120, Amount: 9000},
					{District: "Hardwar", Quantity: 80, Amount: 6000},
				},
			},
			submit: true,
		},
		{
			vendor: vendors[0],
			input: models.BillInput{
				Month: "April", Year: 2025, TotalAmount: 8000,
				Allocations: []models.DistrictAllocation{
					{District: "Dehradun", Quantity: 64, Amount: 8000},
				},
			},
		},
		{
			vendor: vendors[1],
			input: models.BillInput{
				Month: "March", Year: 2025, TotalAmount: 5500,
				Allocations: []models.DistrictAllocation{
					{District: "Hardwar", Quantity: 44, Amount: 5500},
				},
			},
			submit: true,
		},
	}

	for _, d := range demos {
		vendorCtx := requestcontext.WithActor(ctx, d.vendor)
		bill, err := s.Create(vendorCtx, d.input, nil)
		if err != nil {
			return err
		}
		if d.submit {
			if _, err := s.Submit(vendorCtx, bill.ID); err != nil {
				return err
			}
		}
	}
	s.logger.InfoContext(ctx, "seeded demo bills", "count", len(demos))
	return nil
}
