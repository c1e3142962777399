package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists users via pgx. Unique indexes on username and email
// back the store-level duplicate detection.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps the shared pool and ensures the schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash BYTEA NOT NULL,
			role TEXT NOT NULL,
			district TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (LOWER(username));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (LOWER(email));
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (id, username, email, password_hash, role, district, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(user.ID), user.Username, user.Email, user.PasswordHash,
		user.Role.String(), user.District, user.Active, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.UserID) (models.User, error) {
	return s.findBy(ctx, "id = $1", uuid.UUID(id))
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findBy(ctx, "username = $1", username)
}

func (s *Postgres) findBy(ctx context.Context, cond string, arg any) (models.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, district, active, created_at
		FROM users WHERE ` + cond
	row := s.pool.QueryRow(ctx, query, arg)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (s *Postgres) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET email = $2, role = $3, district = $4, active = $5
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		uuid.UUID(user.ID), user.Email, user.Role.String(), user.District, user.Active,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT id, username, email, password_hash, role, district, active, created_at
		FROM users ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		id   uuid.UUID
		role string
	)
	err := row.Scan(&id, &user.Username, &user.Email, &user.PasswordHash,
		&role, &user.District, &user.Active, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.ID = domain.UserID(id)
	user.Role = domain.Role(role)
	return user, nil
}
