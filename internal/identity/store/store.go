// Package store persists user accounts. Stores are interface-driven so the
// service stays testable against the in-memory implementation.
package store

import (
	"context"

	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// UserStore is the contract both the memory and postgres stores satisfy.
// Create returns sentinel.ErrDuplicate when the username or email is taken;
// lookups return sentinel.ErrNotFound.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id domain.UserID) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	List(ctx context.Context) ([]models.User, error)
}
