// Package service implements account registration, authentication and the
// admin-facing user management operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/internal/identity/store"
	"github.com/AshishBhandari123/bvas-project/internal/jwttoken"
	"github.com/AshishBhandari123/bvas-project/internal/platform/metrics"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// TokenRevoker invalidates issued tokens for their remaining lifetime.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// Service wires the user store, token issuance and the audit trail.
type Service struct {
	users      store.UserStore
	tokens     *jwttoken.Service
	revoker    TokenRevoker
	recorder   *audit.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	bcryptCost int
}

// Option configures the Service.
type Option func(*Service)

// WithRevoker enables logout token revocation.
func WithRevoker(r TokenRevoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithMetrics counts account creations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(users store.UserStore, tokens *jwttoken.Service, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		recorder:   recorder,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a self-service account and signs it in. Only vendor and
// district verifier roles may self-register.
func (s *Service) Register(ctx context.Context, in models.NewUserInput) (models.User, string, error) {
	user, err := s.createUser(ctx, in, false)
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.tokens.GenerateAccessToken(user.Actor())
	if err != nil {
		return models.User{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}

	s.recorder.Record(ctx, audit.ActionRegister, audit.EntityUser, user.ID.String(), user.ID,
		"New user registered: "+user.Username)
	return user, token, nil
}

// Login verifies credentials and issues an access token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (models.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, "", dErrors.New(dErrors.CodeValidation, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return models.User{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return models.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.Active {
		return models.User{}, "", dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}

	token, err := s.tokens.GenerateAccessToken(user.Actor())
	if err != nil {
		return models.User{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}

	s.recorder.Record(ctx, audit.ActionLogin, audit.EntityUser, user.ID.String(), user.ID,
		"User logged in: "+user.Username)
	return user, token, nil
}

// Logout revokes the presented token for its remaining lifetime. Without a
// configured revoker this is a no-op beyond the trail entry.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.ValidateToken(rawToken)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	actor := requestcontext.Actor(ctx)
	if s.revoker != nil && claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time)
		if err := s.revoker.Revoke(ctx, claims.ID, remaining); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "revoke token")
		}
	}

	s.recorder.Record(ctx, audit.ActionLogout, audit.EntityUser, actor.ID.String(), actor.ID,
		"User logged out: "+actor.Username)
	return nil
}

// DisplayName resolves a user ID to its username for presentation. Unknown
// or nil IDs resolve to the empty string.
func (s *Service) DisplayName(ctx context.Context, id domain.UserID) string {
	if id.IsNil() {
		return ""
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return ""
	}
	return user.Username
}

// LoadActor resolves the current account state for the auth middleware.
func (s *Service) LoadActor(ctx context.Context, id domain.UserID) (domain.Actor, bool, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.Actor{}, false, err
	}
	return user.Actor(), user.Active, nil
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, id domain.UserID) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return user, nil
}

// ListUsers returns all accounts, newest first. Admin only; enforced at the
// route level.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

// GetUser returns one account by ID.
func (s *Service) GetUser(ctx context.Context, id domain.UserID) (models.User, error) {
	return s.Profile(ctx, id)
}

// CreateUser is the admin path: any role may be assigned.
func (s *Service) CreateUser(ctx context.Context, in models.NewUserInput) (models.User, error) {
	user, err := s.createUser(ctx, in, true)
	if err != nil {
		return models.User{}, err
	}

	actor := requestcontext.Actor(ctx)
	s.recorder.Record(ctx, audit.ActionCreateUser, audit.EntityUser, user.ID.String(), actor.ID,
		"User created: "+user.Username+" ("+user.Role.String()+")")
	return user, nil
}

// UpdateUser applies the non-nil fields. Role and district changes are
// re-validated against the verifier district requirement.
func (s *Service) UpdateUser(ctx context.Context, id domain.UserID, in models.UpdateUserInput) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return models.User{}, dErrors.New(dErrors.CodeValidation, "invalid email address")
		}
		user.Email = email
	}
	if in.Role != nil {
		role, ok := domain.ParseRole(in.Role.String())
		if !ok {
			return models.User{}, dErrors.New(dErrors.CodeValidation, "unknown role")
		}
		user.Role = role
	}
	if in.District != nil {
		user.District = strings.TrimSpace(*in.District)
	}
	if user.Role == domain.RoleDistrictVerifier {
		if user.District == "" {
			return models.User{}, dErrors.New(dErrors.CodeValidation, "district is required for district verifiers")
		}
	} else {
		user.District = ""
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return models.User{}, dErrors.New(dErrors.CodeConflict, "email already in use")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}

	actor := requestcontext.Actor(ctx)
	s.recorder.Record(ctx, audit.ActionUpdateUser, audit.EntityUser, user.ID.String(), actor.ID,
		"User updated: "+user.Username)
	return user, nil
}

// DeactivateUser soft-deletes an account. The record is retained so the
// audit trail keeps resolving its references. Admins cannot deactivate
// their own account.
func (s *Service) DeactivateUser(ctx context.Context, id domain.UserID) error {
	actor := requestcontext.Actor(ctx)
	if actor.ID == id {
		return dErrors.New(dErrors.CodeValidation, "cannot deactivate your own account")
	}

	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}

	user.Active = false
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate user")
	}

	s.recorder.Record(ctx, audit.ActionDeleteUser, audit.EntityUser, user.ID.String(), actor.ID,
		"User deactivated: "+user.Username)
	return nil
}

func (s *Service) createUser(ctx context.Context, in models.NewUserInput, adminCreated bool) (models.User, error) {
	if err := in.Validate(adminCreated); err != nil {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	user := models.User{
		ID:           domain.NewUserID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		District:     in.District,
		Active:       true,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return models.User{}, dErrors.New(dErrors.CodeConflict, "username or email already exists")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	if s.metrics != nil {
		s.metrics.UsersCreated.Inc()
	}
	return user, nil
}
