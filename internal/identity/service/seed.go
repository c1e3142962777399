package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

type seedAccount struct {
	username string
	email    string
	role     domain.Role
	district string
}

// Demo accounts for local development. All share the same password; never
// enable seeding against a real deployment.
var seedAccounts = []seedAccount{
	{"superadmin", "superadmin@bvas.local", domain.RoleSuperAdmin, ""},
	{"hqadmin", "hqadmin@bvas.local", domain.RoleHQAdmin, ""},
	{"verifier_dehradun", "verifier.dehradun@bvas.local", domain.RoleDistrictVerifier, "Dehradun"},
	{"verifier_hardwar", "verifier.hardwar@bvas.local", domain.RoleDistrictVerifier, "Hardwar"},
	{"vendor1", "vendor1@bvas.local", domain.RoleVendor, ""},
	{"vendor2", "vendor2@bvas.local", domain.RoleVendor, ""},
}

const seedPassword = "password123"

// SeedUsers creates the demo accounts, skipping any that already exist.
// Returns the accounts keyed by username so callers can seed dependent data.
func (s *Service) SeedUsers(ctx context.Context) (map[string]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	seeded := make(map[string]models.User, len(seedAccounts))
	for _, acct := range seedAccounts {
		user := models.User{
			ID:           domain.NewUserID(),
			Username:     acct.username,
			Email:        acct.email,
			PasswordHash: hash,
			Role:         acct.role,
			District:     acct.district,
			Active:       true,
			CreatedAt:    requestcontext.Now(ctx),
		}
		err := s.users.Create(ctx, user)
		if errors.Is(err, sentinel.ErrDuplicate) {
			existing, findErr := s.users.FindByUsername(ctx, acct.username)
			if findErr != nil {
				return nil, findErr
			}
			seeded[acct.username] = existing
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "seeded demo user",
			"username", acct.username,
			"role", acct.role.String(),
		)
		seeded[acct.username] = user
	}
	return seeded, nil
}
