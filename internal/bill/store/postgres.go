package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists bills via pgx. Allocations, documents, the signature
// and the embedded audit log live in JSONB columns: they are always read
// and written with the bill, never queried row-by-row, except the district
// containment filter which uses jsonb @>.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS bills (
			id UUID PRIMARY KEY,
			bill_number TEXT NOT NULL,
			vendor_id UUID NOT NULL,
			month TEXT NOT NULL,
			year INT NOT NULL,
			total_amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			allocations JSONB NOT NULL DEFAULT '[]',
			documents JSONB NOT NULL DEFAULT '[]',
			remarks TEXT NOT NULL DEFAULT '',
			approved_by UUID,
			rejected_by UUID,
			submitted_at TIMESTAMPTZ,
			approved_at TIMESTAMPTZ,
			rejected_at TIMESTAMPTZ,
			signature JSONB,
			audit_log JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_bills_number ON bills (bill_number);
		CREATE INDEX IF NOT EXISTS idx_bills_vendor ON bills (vendor_id);
		CREATE INDEX IF NOT EXISTS idx_bills_status ON bills (status);
		CREATE INDEX IF NOT EXISTS idx_bills_allocations ON bills USING GIN (allocations jsonb_path_ops);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure bills schema: %w", err)
	}
	return nil
}

const billColumns = `id, bill_number, vendor_id, month, year, total_amount, status,
	allocations, documents, remarks, approved_by, rejected_by,
	submitted_at, approved_at, rejected_at, signature, audit_log, created_at`

func (s *Postgres) Create(ctx context.Context, bill models.Bill) error {
	allocations, documents, signature, auditLog, err := marshalBill(bill)
	if err != nil {
		return err
	}
	query := `INSERT INTO bills (` + billColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = s.pool.Exec(ctx, query,
		uuid.UUID(bill.ID), bill.BillNumber, uuid.UUID(bill.VendorID),
		bill.Month, bill.Year, bill.TotalAmount, bill.Status.String(),
		allocations, documents, bill.Remarks,
		nullableID(bill.ApprovedBy), nullableID(bill.RejectedBy),
		bill.SubmittedAt, bill.ApprovedAt, bill.RejectedAt,
		signature, auditLog, bill.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.BillID) (models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`
	bill, err := scanBill(s.pool.QueryRow(ctx, query, uuid.UUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Bill{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Bill{}, fmt.Errorf("query bill: %w", err)
	}
	return bill, nil
}

// UpdateIf is the lost-update guard: the row only changes while its status
// is still one of expected, so the first concurrent transition wins and the
// second observes ErrInvalidState.
func (s *Postgres) UpdateIf(ctx context.Context, bill models.Bill, expected []models.Status) error {
	allocations, documents, signature, auditLog, err := marshalBill(bill)
	if err != nil {
		return err
	}
	const query = `
		UPDATE bills
		SET month = $2, year = $3, total_amount = $4, status = $5,
			allocations = $6, documents = $7, remarks = $8,
			approved_by = $9, rejected_by = $10,
			submitted_at = $11, approved_at = $12, rejected_at = $13,
			signature = $14, audit_log = $15
		WHERE id = $1 AND status = ANY($16)
	`
	tag, err := s.pool.Exec(ctx, query,
		uuid.UUID(bill.ID),
		bill.Month, bill.Year, bill.TotalAmount, bill.Status.String(),
		allocations, documents, bill.Remarks,
		nullableID(bill.ApprovedBy), nullableID(bill.RejectedBy),
		bill.SubmittedAt, bill.ApprovedAt, bill.RejectedAt,
		signature, auditLog,
		statusStrings(expected),
	)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bills WHERE id = $1)`,
			uuid.UUID(bill.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("check bill existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) DeleteIf(ctx context.Context, id domain.BillID, expected []models.Status) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1 AND status = ANY($2)`,
		uuid.UUID(id), statusStrings(expected))
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bills WHERE id = $1)`,
			uuid.UUID(id)).Scan(&exists); err != nil {
			return fmt.Errorf("check bill existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills`
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.VendorID.IsNil() {
		conds = append(conds, "vendor_id = "+arg(uuid.UUID(f.VendorID)))
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status = ANY("+arg(statusStrings(f.Statuses))+")")
	}
	if f.District != "" {
		containment, err := json.Marshal([]map[string]string{{"district": f.District}})
		if err != nil {
			return nil, fmt.Errorf("marshal district filter: %w", err)
		}
		conds = append(conds, "allocations @> "+arg(containment))
	}
	if f.Month != "" {
		conds = append(conds, "month = "+arg(f.Month))
	}
	if f.Year != 0 {
		conds = append(conds, "year = "+arg(f.Year))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM bills GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count bills: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func marshalBill(bill models.Bill) (allocations, documents, signature, auditLog []byte, err error) {
	if allocations, err = json.Marshal(orEmpty(bill.Allocations)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal allocations: %w", err)
	}
	if documents, err = json.Marshal(orEmpty(bill.Documents)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal documents: %w", err)
	}
	if bill.Signature != nil {
		if signature, err = json.Marshal(bill.Signature); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal signature: %w", err)
		}
	}
	if auditLog, err = json.Marshal(orEmpty(bill.AuditLog)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal audit log: %w", err)
	}
	return allocations, documents, signature, auditLog, nil
}

func scanBill(row pgx.Row) (models.Bill, error) {
	var (
		bill                 models.Bill
		id, vendorID         uuid.UUID
		approved, rejected   *uuid.UUID
		status               string
		allocations, docs    []byte
		signature, auditLog  []byte
		submitted, approvedA *time.Time
		rejectedA            *time.Time
	)
	err := row.Scan(&id, &bill.BillNumber, &vendorID, &bill.Month, &bill.Year,
		&bill.TotalAmount, &status, &allocations, &docs, &bill.Remarks,
		&approved, &rejected, &submitted, &approvedA, &rejectedA,
		&signature, &auditLog, &bill.CreatedAt)
	if err != nil {
		return models.Bill{}, err
	}

	bill.ID = domain.BillID(id)
	bill.VendorID = domain.UserID(vendorID)
	bill.Status = models.Status(status)
	bill.SubmittedAt = submitted
	bill.ApprovedAt = approvedA
	bill.RejectedAt = rejectedA
	if approved != nil {
		bill.ApprovedBy = domain.UserID(*approved)
	}
	if rejected != nil {
		bill.RejectedBy = domain.UserID(*rejected)
	}
	if err := json.Unmarshal(allocations, &bill.Allocations); err != nil {
		return models.Bill{}, fmt.Errorf("unmarshal allocations: %w", err)
	}
	if err := json.Unmarshal(docs, &bill.Documents); err != nil {
		return models.Bill{}, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(auditLog, &bill.AuditLog); err != nil {
		return models.Bill{}, fmt.Errorf("unmarshal audit log: %w", err)
	}
	if len(signature) > 0 {
		bill.Signature = &models.SignatureRecord{}
		if err := json.Unmarshal(signature, bill.Signature); err != nil {
			return models.Bill{}, fmt.Errorf("unmarshal signature: %w", err)
		}
	}
	return bill, nil
}

func nullableID(id domain.UserID) *uuid.UUID {
	if id.IsNil() {
		return nil
	}
	u := uuid.UUID(id)
	return &u
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
