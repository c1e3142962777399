// Package service orchestrates the bill lifecycle: it consults the policy
// gate, applies transitions through the store's conditional update, and
// writes the embedded and system-wide audit records.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/internal/bill/policy"
	"github.com/AshishBhandari123/bvas-project/internal/bill/store"
	"github.com/AshishBhandari123/bvas-project/internal/blob"
	"github.com/AshishBhandari123/bvas-project/internal/platform/metrics"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

const maxDocumentsPerBill = 5

// billNumberRetries bounds the unique-constraint retry loop on create.
const billNumberRetries = 3

var tracer = otel.Tracer("bvas/bill")

// DocumentUpload is one incoming file. The handler has already enforced
// size and content-type limits; the service owns the per-bill count cap.
type DocumentUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Service implements the bill lifecycle operations.
type Service struct {
	bills    store.BillStore
	blobs    blob.Store
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics enables transition counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(bills store.BillStore, blobs blob.Store, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{bills: bills, blobs: blobs, recorder: recorder, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create makes a new draft bill owned by the calling vendor. The bill
// number is assigned here, exactly once; the store's unique constraint
// backs it, with a short retry on the unlikely collision.
func (s *Service) Create(ctx context.Context, in models.BillInput, uploads []DocumentUpload) (models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.create")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return models.Bill{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actor.Role != domain.RoleVendor {
		return models.Bill{}, dErrors.New(dErrors.CodeForbidden, "only vendors create bills")
	}
	if err := in.Validate(); err != nil {
		return models.Bill{}, err
	}

	documents, err := s.saveUploads(ctx, nil, uploads)
	if err != nil {
		return models.Bill{}, err
	}

	now := requestcontext.Now(ctx)
	bill := models.Bill{
		ID:          domain.NewBillID(),
		VendorID:    actor.ID,
		Month:       in.Month,
		Year:        in.Year,
		TotalAmount: in.TotalAmount,
		Status:      models.StatusDraft,
		Allocations: in.Allocations,
		Documents:   documents,
		Remarks:     strings.TrimSpace(in.Remarks),
		CreatedAt:   now,
	}
	bill.AppendAudit(audit.ActionCreateBill, actor.ID, now, "Bill created")

	for attempt := 0; ; attempt++ {
		bill.BillNumber = models.NewBillNumber(now)
		err = s.bills.Create(ctx, bill)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrDuplicate) && attempt < billNumberRetries {
			continue
		}
		s.releaseDocuments(ctx, documents)
		return models.Bill{}, dErrors.Wrap(err, dErrors.CodeInternal, "create bill")
	}

	span.SetAttributes(attribute.String("bill.number", bill.BillNumber))
	if s.metrics != nil {
		s.metrics.BillsCreated.Inc()
	}
	s.recorder.Record(ctx, audit.ActionCreateBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" created")
	return bill, nil
}

// Update overwrites the vendor-editable fields. A draft stays a draft; a
// rejected bill re-enters review as resubmitted, keeping its rejection
// history. New documents are appended.
func (s *Service) Update(ctx context.Context, id domain.BillID, in models.BillInput, uploads []DocumentUpload) (models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.update", trace.WithAttributes(attribute.String("bill.id", id.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	bill, err := s.loadForTransition(ctx, actor, id)
	if err != nil {
		return models.Bill{}, err
	}
	if d := policy.CanTransition(actor, bill, policy.Request{Operation: policy.OpUpdate}); !d.Allowed {
		return models.Bill{}, denyError(d)
	}
	if err := in.Validate(); err != nil {
		return models.Bill{}, err
	}

	documents, err := s.saveUploads(ctx, bill.Documents, uploads)
	if err != nil {
		return models.Bill{}, err
	}

	now := requestcontext.Now(ctx)
	sourceStatus := bill.Status
	bill.Month = in.Month
	bill.Year = in.Year
	bill.TotalAmount = in.TotalAmount
	bill.Allocations = in.Allocations
	bill.Remarks = strings.TrimSpace(in.Remarks)
	bill.Documents = documents
	if sourceStatus == models.StatusRejected {
		bill.Status = models.StatusResubmitted
	}
	bill.AppendAudit(audit.ActionUpdateBill, actor.ID, now, "Bill updated")

	if err := s.commit(ctx, bill, []models.Status{sourceStatus}, policy.OpUpdate); err != nil {
		return models.Bill{}, err
	}
	s.recorder.Record(ctx, audit.ActionUpdateBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" updated")
	return bill, nil
}

// Submit moves a draft into review.
func (s *Service) Submit(ctx context.Context, id domain.BillID) (models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.submit", trace.WithAttributes(attribute.String("bill.id", id.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	bill, err := s.loadForTransition(ctx, actor, id)
	if err != nil {
		return models.Bill{}, err
	}
	if d := policy.CanTransition(actor, bill, policy.Request{Operation: policy.OpSubmit}); !d.Allowed {
		return models.Bill{}, denyError(d)
	}

	now := requestcontext.Now(ctx)
	bill.Status = models.StatusSubmitted
	bill.SubmittedAt = &now
	bill.AppendAudit(audit.ActionSubmitBill, actor.ID, now, "Bill submitted for verification")

	if err := s.commit(ctx, bill, []models.Status{models.StatusDraft}, policy.OpSubmit); err != nil {
		return models.Bill{}, err
	}
	s.recorder.Record(ctx, audit.ActionSubmitBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" submitted")
	return bill, nil
}

// Approve finishes review positively and attaches the signature record.
// Remarks are optional. Concurrent approvals race on the conditional
// update; only the first signature ever lands.
func (s *Service) Approve(ctx context.Context, id domain.BillID, remarks string) (models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.approve", trace.WithAttributes(attribute.String("bill.id", id.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	bill, err := s.loadForTransition(ctx, actor, id)
	if err != nil {
		return models.Bill{}, err
	}
	if d := policy.CanTransition(actor, bill, policy.Request{Operation: policy.OpApprove}); !d.Allowed {
		return models.Bill{}, denyError(d)
	}

	now := requestcontext.Now(ctx)
	bill.Status = models.StatusApproved
	bill.ApprovedBy = actor.ID
	bill.ApprovedAt = &now
	bill.Remarks = strings.TrimSpace(remarks)
	// Placeholder attestation, not a cryptographic signature.
	bill.Signature = &models.SignatureRecord{
		SignedBy: actor.Username,
		SignedAt: now,
		Token:    fmt.Sprintf("MOCK_SIGNATURE_%d_%s", now.UnixMilli(), actor.ID),
	}
	bill.AppendAudit(audit.ActionApproveBill, actor.ID, now, "Bill approved")

	if err := s.commit(ctx, bill, models.ReviewStatuses, policy.OpApprove); err != nil {
		return models.Bill{}, err
	}
	s.recorder.Record(ctx, audit.ActionApproveBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" approved")
	return bill, nil
}

// Reject finishes review negatively. Remarks are mandatory and trimmed.
func (s *Service) Reject(ctx context.Context, id domain.BillID, remarks string) (models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.reject", trace.WithAttributes(attribute.String("bill.id", id.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	bill, err := s.loadForTransition(ctx, actor, id)
	if err != nil {
		return models.Bill{}, err
	}
	if d := policy.CanTransition(actor, bill, policy.Request{Operation: policy.OpReject, Remarks: remarks}); !d.Allowed {
		return models.Bill{}, denyError(d)
	}

	now := requestcontext.Now(ctx)
	bill.Status = models.StatusRejected
	bill.RejectedBy = actor.ID
	bill.RejectedAt = &now
	bill.Remarks = strings.TrimSpace(remarks)
	bill.AppendAudit(audit.ActionRejectBill, actor.ID, now, "Bill rejected: "+bill.Remarks)

	if err := s.commit(ctx, bill, models.ReviewStatuses, policy.OpReject); err != nil {
		return models.Bill{}, err
	}
	s.recorder.Record(ctx, audit.ActionRejectBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" rejected: "+bill.Remarks)
	return bill, nil
}

// Delete removes a draft bill and releases its document blobs. The system
// audit trail keeps its entries for the deleted bill.
func (s *Service) Delete(ctx context.Context, id domain.BillID) error {
	ctx, span := tracer.Start(ctx, "bill.delete", trace.WithAttributes(attribute.String("bill.id", id.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	bill, err := s.loadForTransition(ctx, actor, id)
	if err != nil {
		return err
	}
	if d := policy.CanTransition(actor, bill, policy.Request{Operation: policy.OpDelete}); !d.Allowed {
		return denyError(d)
	}

	// Conditional on the observed status so a transition landing after the
	// policy check invalidates the delete instead of being wiped out.
	if err := s.bills.DeleteIf(ctx, id, []models.Status{bill.Status}); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "bill not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			s.observe(policy.OpDelete, "conflict")
			return dErrors.New(dErrors.CodeConflict, "bill status changed concurrently")
		}
		s.observe(policy.OpDelete, "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete bill")
	}
	s.releaseDocuments(ctx, bill.Documents)

	s.observe(policy.OpDelete, "ok")
	s.recorder.Record(ctx, audit.ActionDeleteBill, audit.EntityBill, bill.ID.String(), actor.ID,
		"Bill "+bill.BillNumber+" deleted")
	return nil
}

// Get returns one bill within the caller's read scope. Scoped-out bills
// report not found, never forbidden.
func (s *Service) Get(ctx context.Context, id domain.BillID) (models.Bill, error) {
	actor := requestcontext.Actor(ctx)
	bill, err := s.bills.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Bill{}, dErrors.New(dErrors.CodeNotFound, "bill not found")
	}
	if err != nil {
		return models.Bill{}, dErrors.Wrap(err, dErrors.CodeInternal, "get bill")
	}
	if !policy.CanRead(actor, bill) {
		return models.Bill{}, dErrors.New(dErrors.CodeNotFound, "bill not found")
	}
	return bill, nil
}

// AuditLog returns the bill's embedded history, same scoping as Get.
func (s *Service) AuditLog(ctx context.Context, id domain.BillID) ([]models.AuditEntry, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return bill.AuditLog, nil
}

// OpenDocument returns a reader for one of the bill's documents, same
// scoping as Get.
func (s *Service) OpenDocument(ctx context.Context, id domain.BillID, docID domain.DocumentID) (models.Document, io.ReadCloser, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return models.Document{}, nil, err
	}
	for _, doc := range bill.Documents {
		if doc.ID == docID {
			rc, err := s.blobs.Open(ctx, doc.Handle)
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.Document{}, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
			}
			if err != nil {
				return models.Document{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "open document")
			}
			return doc, rc, nil
		}
	}
	return models.Document{}, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
}

// loadForTransition fetches the bill for a mutation attempt. Vendors only
// ever see their own bills, so a foreign bill reads as not found; verifier
// district mismatches surface later as authorization errors from the
// policy gate.
func (s *Service) loadForTransition(ctx context.Context, actor domain.Actor, id domain.BillID) (models.Bill, error) {
	bill, err := s.bills.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Bill{}, dErrors.New(dErrors.CodeNotFound, "bill not found")
	}
	if err != nil {
		return models.Bill{}, dErrors.Wrap(err, dErrors.CodeInternal, "get bill")
	}
	if actor.Role == domain.RoleVendor && bill.VendorID != actor.ID {
		return models.Bill{}, dErrors.New(dErrors.CodeNotFound, "bill not found")
	}
	return bill, nil
}

// commit writes the transitioned bill, guarded by the expected source
// statuses. A losing concurrent writer observes the conflict here.
func (s *Service) commit(ctx context.Context, bill models.Bill, expected []models.Status, op policy.Operation) error {
	err := s.bills.UpdateIf(ctx, bill, expected)
	switch {
	case err == nil:
		s.observe(op, "ok")
		return nil
	case errors.Is(err, sentinel.ErrInvalidState):
		s.observe(op, "conflict")
		return dErrors.New(dErrors.CodeConflict, "bill status changed concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "bill not found")
	default:
		s.observe(op, "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "update bill")
	}
}

func (s *Service) observe(op policy.Operation, outcome string) {
	s.metrics.ObserveTransition(string(op), outcome)
}

func (s *Service) saveUploads(ctx context.Context, existing []models.Document, uploads []DocumentUpload) ([]models.Document, error) {
	if len(existing)+len(uploads) > maxDocumentsPerBill {
		return nil, dErrors.Newf(dErrors.CodeValidation, "a bill carries at most %d documents", maxDocumentsPerBill)
	}

	documents := existing
	var saved []models.Document
	now := requestcontext.Now(ctx)
	for _, up := range uploads {
		handle, err := s.blobs.Save(ctx, up.Name, up.Content)
		if err != nil {
			s.releaseDocuments(ctx, saved)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store document")
		}
		doc := models.Document{
			ID:           domain.NewDocumentID(),
			OriginalName: up.Name,
			Handle:       handle,
			ContentType:  up.ContentType,
			Size:         up.Size,
			UploadedAt:   now,
		}
		saved = append(saved, doc)
		documents = append(documents, doc)
	}
	return documents, nil
}

func (s *Service) releaseDocuments(ctx context.Context, documents []models.Document) {
	for _, doc := range documents {
		if err := s.blobs.Release(ctx, doc.Handle); err != nil {
			s.logger.ErrorContext(ctx, "failed to release document blob",
				"request_id", requestcontext.RequestID(ctx),
				"handle", doc.Handle,
				"error", err,
			)
		}
	}
}

// denyError maps a policy denial onto the error taxonomy. Not-owner reads
// as not found so a vendor probing another vendor's bill learns nothing.
func denyError(d policy.Decision) error {
	switch d.Reason {
	case policy.DenyNotAuthenticated:
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	case policy.DenyRoleForbidden:
		return dErrors.New(dErrors.CodeForbidden, "role not permitted for this operation")
	case policy.DenyNotOwner:
		return dErrors.New(dErrors.CodeNotFound, "bill not found")
	case policy.DenyDistrictMismatch:
		return dErrors.New(dErrors.CodeForbidden, "bill has no allocation for your district")
	case policy.DenyInvalidSourceState:
		return dErrors.New(dErrors.CodeConflict, "bill is not in an eligible status for this operation")
	case policy.DenyMissingRequiredField:
		return dErrors.New(dErrors.CodeValidation, "rejection remarks must not be empty")
	default:
		return dErrors.New(dErrors.CodeForbidden, "operation not permitted")
	}
}
