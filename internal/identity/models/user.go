// Package models holds the user account entity and its input validation.
package models

import (
	"net/mail"
	"strings"
	"time"

	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// User is an account. Deactivation is soft: Active flips to false and the
// record is retained for audit references.
type User struct {
	ID           domain.UserID
	Username     string
	Email        string
	PasswordHash []byte
	Role         domain.Role
	District     string
	Active       bool
	CreatedAt    time.Time
}

// Actor projects the account into the authorization view used by policy
// checks and token claims.
func (u User) Actor() domain.Actor {
	return domain.Actor{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		District: u.District,
	}
}

// NewUserInput is the validated input for account creation.
type NewUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
	District string
}

// Validate normalizes and checks creation input. adminCreated widens the
// allowed roles: self-registration is restricted to vendors and district
// verifiers, admins are only created by other admins.
func (in *NewUserInput) Validate(adminCreated bool) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.District = strings.TrimSpace(in.District)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	if len(in.Password) < 6 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}

	if in.Role == "" {
		in.Role = domain.RoleVendor
	}
	if _, ok := domain.ParseRole(in.Role.String()); !ok {
		return dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if !adminCreated && in.Role != domain.RoleVendor && in.Role != domain.RoleDistrictVerifier {
		return dErrors.New(dErrors.CodeValidation, "registration not allowed for this role")
	}

	if in.Role == domain.RoleDistrictVerifier {
		if in.District == "" {
			return dErrors.New(dErrors.CodeValidation, "district is required for district verifiers")
		}
	} else {
		// District only means something for verifiers.
		in.District = ""
	}
	return nil
}

// UpdateUserInput carries the admin-updatable fields. Nil means unchanged.
// Password updates deliberately have no field here.
type UpdateUserInput struct {
	Email    *string
	Role     *domain.Role
	District *string
	Active   *bool
}
