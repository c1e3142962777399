package handler

import (
	"context"
	"time"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

type allocationResponse struct {
	District string  `json:"district"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

type documentResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
}

type signatureResponse struct {
	SignedBy string `json:"signedBy"`
	SignedAt string `json:"signedAt"`
	Token    string `json:"token"`
}

type auditEntryResponse struct {
	Action      string `json:"action"`
	PerformedBy string `json:"performedBy"`
	PerformedAt string `json:"performedAt"`
	Details     string `json:"details,omitempty"`
}

type userRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type billResponse struct {
	ID           string               `json:"id"`
	BillNumber   string               `json:"billNumber"`
	Vendor       userRef              `json:"vendor"`
	Month        string               `json:"month"`
	Year         int                  `json:"year"`
	TotalAmount  float64              `json:"totalAmount"`
	Status       string               `json:"status"`
	DistrictData []allocationResponse `json:"districtData"`
	Documents    []documentResponse   `json:"documents"`
	Remarks      string               `json:"remarks,omitempty"`
	ApprovedBy   *userRef             `json:"approvedBy,omitempty"`
	RejectedBy   *userRef             `json:"rejectedBy,omitempty"`
	SubmittedAt  *string              `json:"submittedAt,omitempty"`
	ApprovedAt   *string              `json:"approvedAt,omitempty"`
	RejectedAt   *string              `json:"rejectedAt,omitempty"`
	Signature    *signatureResponse   `json:"signature,omitempty"`
	AuditLog     []auditEntryResponse `json:"auditLog"`
	CreatedAt    string               `json:"createdAt"`
}

func (h *Handler) toBillResponse(ctx context.Context, bill models.Bill) billResponse {
	resp := billResponse{
		ID:           bill.ID.String(),
		BillNumber:   bill.BillNumber,
		Vendor:       h.userRef(ctx, bill.VendorID),
		Month:        bill.Month,
		Year:         bill.Year,
		TotalAmount:  bill.TotalAmount,
		Status:       bill.Status.String(),
		DistrictData: make([]allocationResponse, 0, len(bill.Allocations)),
		Documents:    make([]documentResponse, 0, len(bill.Documents)),
		Remarks:      bill.Remarks,
		AuditLog:     make([]auditEntryResponse, 0, len(bill.AuditLog)),
		CreatedAt:    bill.CreatedAt.Format(time.RFC3339),
	}
	for _, a := range bill.Allocations {
		resp.DistrictData = append(resp.DistrictData, allocationResponse(a))
	}
	for _, d := range bill.Documents {
		resp.Documents = append(resp.Documents, documentResponse{
			ID:           d.ID.String(),
			OriginalName: d.OriginalName,
			ContentType:  d.ContentType,
			Size:         d.Size,
			UploadedAt:   d.UploadedAt.Format(time.RFC3339),
		})
	}
	for _, e := range bill.AuditLog {
		resp.AuditLog = append(resp.AuditLog, auditEntryResponse{
			Action:      e.Action,
			PerformedBy: e.PerformedBy.String(),
			PerformedAt: e.PerformedAt.Format(time.RFC3339),
			Details:     e.Details,
		})
	}
	if !bill.ApprovedBy.IsNil() {
		ref := h.userRef(ctx, bill.ApprovedBy)
		resp.ApprovedBy = &ref
	}
	if !bill.RejectedBy.IsNil() {
		ref := h.userRef(ctx, bill.RejectedBy)
		resp.RejectedBy = &ref
	}
	resp.SubmittedAt = formatTime(bill.SubmittedAt)
	resp.ApprovedAt = formatTime(bill.ApprovedAt)
	resp.RejectedAt = formatTime(bill.RejectedAt)
	if bill.Signature != nil {
		resp.Signature = &signatureResponse{
			SignedBy: bill.Signature.SignedBy,
			SignedAt: bill.Signature.SignedAt.Format(time.RFC3339),
			Token:    bill.Signature.Token,
		}
	}
	return resp
}

func (h *Handler) userRef(ctx context.Context, id domain.UserID) userRef {
	ref := userRef{ID: id.String()}
	if h.names != nil {
		ref.Name = h.names.DisplayName(ctx, id)
	}
	return ref
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
