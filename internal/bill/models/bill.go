// Package models holds the bill entity, its validation rules and the
// bill-number generator.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
)

// Months recognized on bills, in calendar order.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func validMonth(month string) bool {
	for _, m := range Months {
		if m == month {
			return true
		}
	}
	return false
}

// DistrictAllocation is one district's quantity/amount share of a bill.
// The sum of allocation amounts is not reconciled against the bill total;
// both are caller-supplied.
type DistrictAllocation struct {
	District string  `json:"district"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// Document is a reference to uploaded bytes held by the blob store. Handle
// is opaque; the bill never carries file content.
type Document struct {
	ID           domain.DocumentID `json:"id"`
	OriginalName string            `json:"originalName"`
	Handle       string            `json:"handle"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	UploadedAt   time.Time         `json:"uploadedAt"`
}

// SignatureRecord is the placeholder attestation attached on approval.
// Immutable once set; not cryptographically meaningful.
type SignatureRecord struct {
	SignedBy string    `json:"signedBy"`
	SignedAt time.Time `json:"signedAt"`
	Token    string    `json:"token"`
}

// AuditEntry is one record in the bill's embedded history. Append-only.
type AuditEntry struct {
	Action      string        `json:"action"`
	PerformedBy domain.UserID `json:"performedBy"`
	PerformedAt time.Time     `json:"performedAt"`
	Details     string        `json:"details,omitempty"`
}

// Bill is a vendor's monthly claim, broken down by district. The embedded
// AuditLog is the per-bill history; the system-wide trail is separate.
type Bill struct {
	ID          domain.BillID
	BillNumber  string
	VendorID    domain.UserID
	Month       string
	Year        int
	TotalAmount float64
	Status      Status
	Allocations []DistrictAllocation
	Documents   []Document
	Remarks     string
	ApprovedBy  domain.UserID
	RejectedBy  domain.UserID
	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	Signature   *SignatureRecord
	AuditLog    []AuditEntry
	CreatedAt   time.Time
}

// HasDistrict reports whether any allocation entry names the district.
// Matching is case-sensitive and exact.
func (b Bill) HasDistrict(district string) bool {
	for _, a := range b.Allocations {
		if a.District == district {
			return true
		}
	}
	return false
}

// AppendAudit adds one entry to the embedded history.
func (b *Bill) AppendAudit(action string, by domain.UserID, at time.Time, details string) {
	b.AuditLog = append(b.AuditLog, AuditEntry{
		Action:      action,
		PerformedBy: by,
		PerformedAt: at,
		Details:     details,
	})
}

// BillInput is the validated create/update payload. Allocations arrive as a
// raw JSON string alongside the multipart form fields.
type BillInput struct {
	Month       string
	Year        int
	TotalAmount float64
	Allocations []DistrictAllocation
	Remarks     string
}

// Validate checks the field-level rules shared by create and update.
func (in *BillInput) Validate() error {
	in.Month = strings.TrimSpace(in.Month)
	if !validMonth(in.Month) {
		return dErrors.New(dErrors.CodeValidation, "month must be a calendar month name")
	}
	if in.Year <= 0 {
		return dErrors.New(dErrors.CodeValidation, "year must be a positive integer")
	}
	if in.TotalAmount < 0 {
		return dErrors.New(dErrors.CodeValidation, "total amount must be non-negative")
	}
	for _, a := range in.Allocations {
		if strings.TrimSpace(a.District) == "" {
			return dErrors.New(dErrors.CodeValidation, "allocation district must not be empty")
		}
		if a.Quantity < 0 || a.Amount < 0 {
			return dErrors.New(dErrors.CodeValidation, "allocation quantity and amount must be non-negative")
		}
	}
	return nil
}

// ParseAllocations decodes the raw allocation JSON. In lenient mode (the
// inherited behavior) malformed input degrades to an empty list; strict mode
// rejects it with a validation error instead.
func ParseAllocations(raw string, strict bool) ([]DistrictAllocation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var allocations []DistrictAllocation
	if err := json.Unmarshal([]byte(raw), &allocations); err != nil {
		if strict {
			return nil, dErrors.New(dErrors.CodeValidation, "malformed district allocation data")
		}
		return nil, nil
	}
	return allocations, nil
}
