package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	auditstore "github.com/AshishBhandari123/bvas-project/internal/audit/store"
	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/internal/identity/revocation"
	"github.com/AshishBhandari123/bvas-project/internal/identity/store"
	"github.com/AshishBhandari123/bvas-project/internal/jwttoken"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

func newTestService(t *testing.T) (*Service, *audit.Recorder, *auditstore.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := auditstore.NewMemory()
	recorder := audit.NewRecorder(trail, logger)
	tokens := jwttoken.NewService("test-secret", "bvas", time.Hour)
	svc := NewService(store.NewMemory(), tokens, recorder, logger,
		WithRevoker(revocation.NewMemoryTRL()),
		WithBcryptCost(bcrypt.MinCost),
	)
	return svc, recorder, trail
}

func trailActions(t *testing.T, trail *auditstore.Memory) []string {
	t.Helper()
	entries, _, err := trail.List(context.Background(), audit.Query{Page: 1, Limit: 100})
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestRegister(t *testing.T) {
	t.Run("vendor self-registration succeeds and issues a token", func(t *testing.T) {
		svc, _, trail := newTestService(t)

		user, token, err := svc.Register(context.Background(), models.NewUserInput{
			Username: "vendor1",
			Email:    "Vendor1@Example.com",
			Password: "secret123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, domain.RoleVendor, user.Role)
		assert.Equal(t, "vendor1@example.com", user.Email)
		assert.True(t, user.Active)
		assert.Contains(t, trailActions(t, trail), audit.ActionRegister)
	})

	t.Run("admin roles cannot self-register", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, _, err := svc.Register(context.Background(), models.NewUserInput{
			Username: "sneaky",
			Email:    "sneaky@example.com",
			Password: "secret123",
			Role:     domain.RoleSuperAdmin,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("verifier without district is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, _, err := svc.Register(context.Background(), models.NewUserInput{
			Username: "verifier",
			Email:    "verifier@example.com",
			Password: "secret123",
			Role:     domain.RoleDistrictVerifier,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("duplicate username maps to conflict", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		in := models.NewUserInput{Username: "vendor1", Email: "a@example.com", Password: "secret123"}
		_, _, err := svc.Register(context.Background(), in)
		require.NoError(t, err)

		in.Email = "b@example.com"
		_, _, err = svc.Register(context.Background(), in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestLogin(t *testing.T) {
	register := func(t *testing.T, svc *Service) models.User {
		user, _, err := svc.Register(context.Background(), models.NewUserInput{
			Username: "vendor1",
			Email:    "vendor1@example.com",
			Password: "secret123",
		})
		require.NoError(t, err)
		return user
	}

	t.Run("valid credentials return a working token", func(t *testing.T) {
		svc, _, trail := newTestService(t)
		register(t, svc)

		user, token, err := svc.Login(context.Background(), "vendor1", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "vendor1", user.Username)

		actor, active, err := svc.LoadActor(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, active)
		assert.Equal(t, user.ID, actor.ID)
		assert.NotEmpty(t, token)
		assert.Contains(t, trailActions(t, trail), audit.ActionLogin)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		register(t, svc)

		_, _, err := svc.Login(context.Background(), "vendor1", "wrong")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown username is unauthorized, not not-found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, _, err := svc.Login(context.Background(), "ghost", "secret123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("deactivated account is forbidden", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		user := register(t, svc)

		admin := domain.Actor{ID: domain.NewUserID(), Username: "hqadmin", Role: domain.RoleHQAdmin}
		ctx := requestcontext.WithActor(context.Background(), admin)
		inactive := false
		_, err := svc.UpdateUser(ctx, user.ID, models.UpdateUserInput{Active: &inactive})
		require.NoError(t, err)

		_, _, err = svc.Login(context.Background(), "vendor1", "secret123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestLogout(t *testing.T) {
	svc, _, trail := newTestService(t)

	user, token, err := svc.Register(context.Background(), models.NewUserInput{
		Username: "vendor1",
		Email:    "vendor1@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	ctx := requestcontext.WithActor(context.Background(), user.Actor())
	require.NoError(t, svc.Logout(ctx, token))
	assert.Contains(t, trailActions(t, trail), audit.ActionLogout)

	// The revoked jti must now be rejected by the revocation list.
	claims, err := jwttoken.NewService("test-secret", "bvas", time.Hour).ValidateToken(token)
	require.NoError(t, err)
	revoked, err := svc.revoker.(*revocation.MemoryTRL).IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUpdateUser(t *testing.T) {
	adminCtx := func() context.Context {
		admin := domain.Actor{ID: domain.NewUserID(), Username: "hqadmin", Role: domain.RoleHQAdmin}
		return requestcontext.WithActor(context.Background(), admin)
	}

	t.Run("promoting to verifier requires a district", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		user, _, err := svc.Register(context.Background(), models.NewUserInput{
			Username: "vendor1", Email: "vendor1@example.com", Password: "secret123",
		})
		require.NoError(t, err)

		role := domain.RoleDistrictVerifier
		_, err = svc.UpdateUser(adminCtx(), user.ID, models.UpdateUserInput{Role: &role})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		district := "Dehradun"
		updated, err := svc.UpdateUser(adminCtx(), user.ID, models.UpdateUserInput{Role: &role, District: &district})
		require.NoError(t, err)
		assert.Equal(t, "Dehradun", updated.District)
	})

	t.Run("district is cleared for non-verifier roles", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		user, err := svc.CreateUser(adminCtx(), models.NewUserInput{
			Username: "verifier", Email: "verifier@example.com", Password: "secret123",
			Role: domain.RoleDistrictVerifier, District: "Hardwar",
		})
		require.NoError(t, err)

		role := domain.RoleVendor
		updated, err := svc.UpdateUser(adminCtx(), user.ID, models.UpdateUserInput{Role: &role})
		require.NoError(t, err)
		assert.Empty(t, updated.District)
	})

	t.Run("unknown user is not-found", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		email := "new@example.com"
		_, err := svc.UpdateUser(adminCtx(), domain.NewUserID(), models.UpdateUserInput{Email: &email})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestDeactivateUser(t *testing.T) {
	svc, _, trail := newTestService(t)

	admin := domain.Actor{ID: domain.NewUserID(), Username: "hqadmin", Role: domain.RoleHQAdmin}
	ctx := requestcontext.WithActor(context.Background(), admin)

	user, err := svc.CreateUser(ctx, models.NewUserInput{
		Username: "vendor1", Email: "vendor1@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateUser(ctx, user.ID))
	_, active, err := svc.LoadActor(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Contains(t, trailActions(t, trail), audit.ActionDeleteUser)

	t.Run("self-deactivation is rejected", func(t *testing.T) {
		selfCtx := requestcontext.WithActor(context.Background(), user.Actor())
		err := svc.DeactivateUser(selfCtx, user.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestSeedUsers(t *testing.T) {
	svc, _, _ := newTestService(t)

	seeded, err := svc.SeedUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, seeded, 6)
	assert.Equal(t, "Dehradun", seeded["verifier_dehradun"].District)
	assert.Equal(t, "Hardwar", seeded["verifier_hardwar"].District)
	assert.True(t, seeded["superadmin"].Role.IsAdmin())

	// Seeding twice is idempotent.
	again, err := svc.SeedUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seeded["vendor1"].ID, again["vendor1"].ID)

	_, _, err = svc.Login(context.Background(), "vendor1", "password123")
	require.NoError(t, err)
}
