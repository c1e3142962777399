package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

// Postgres persists the trail in the audit_entries table. The table is
// append-only; nothing in the codebase updates or deletes rows.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the audit database and ensures the schema exists.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	s := &Postgres{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromDB wraps an existing connection (integration tests).
func NewPostgresFromDB(db *sql.DB) (*Postgres, error) {
	s := &Postgres{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) Close() error { return s.db.Close() }

func (s *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			performed_by UUID NOT NULL,
			performed_at TIMESTAMPTZ NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_entity ON audit_entries (entity_type, entity_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_performed_at ON audit_entries (performed_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, entry audit.Entry) error {
	const query = `
		INSERT INTO audit_entries (
			id, action, entity_type, entity_id, performed_by,
			performed_at, details, ip_address, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		uuid.UUID(entry.PerformedBy),
		entry.PerformedAt,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, q audit.Query) ([]audit.Entry, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("entity_type", q.EntityType)
	add("entity_id", q.EntityID)
	add("action", q.Action)

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	query := fmt.Sprintf(
		"SELECT id, action, entity_type, entity_id, performed_by, performed_at, details, ip_address, user_agent"+
			" FROM audit_entries%s ORDER BY performed_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e           audit.Entry
			performedBy uuid.UUID
		)
		if err := rows.Scan(
			&e.ID, &e.Action, &e.EntityType, &e.EntityID, &performedBy,
			&e.PerformedAt, &e.Details, &e.IPAddress, &e.UserAgent,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.PerformedBy = domain.UserID(performedBy)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, total, nil
}
