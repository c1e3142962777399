// Package handler exposes the bill lifecycle over HTTP. Create and update
// accept multipart forms so document uploads travel with the bill fields.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AshishBhandari123/bvas-project/internal/bill/models"
	"github.com/AshishBhandari123/bvas-project/internal/bill/service"
	"github.com/AshishBhandari123/bvas-project/internal/platform/middleware"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/httputil"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

const (
	maxFileSize  = 15 << 20 // per file
	maxFiles     = 5
	maxFormBytes = maxFiles*maxFileSize + (1 << 20)
)

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

// NameResolver maps user IDs to display names for bill responses.
type NameResolver interface {
	DisplayName(ctx context.Context, id domain.UserID) string
}

// Handler serves the /bills routes.
type Handler struct {
	service *service.Service
	names   NameResolver
	logger  *slog.Logger
	strict  bool
}

// Option configures the Handler.
type Option func(*Handler)

// WithStrictAllocations makes malformed districtData a validation error
// instead of the inherited degrade-to-empty behavior.
func WithStrictAllocations(strict bool) Option {
	return func(h *Handler) { h.strict = strict }
}

// New builds the handler. names may be nil; responses then omit display
// names.
func New(service *service.Service, names NameResolver, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, names: names, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the bill routes. The parent router must already enforce
// authentication; per-operation authorization lives in the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/vendor", h.handleMyBills)
		r.Get("/pending", h.handlePending)
		r.Get("/approved", h.handleApproved)
		r.Get("/rejected", h.handleRejected)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, domain.RoleHQAdmin, domain.RoleSuperAdmin))
			r.Get("/admin/all", h.handleAdminList)
			r.Get("/admin/stats", h.handleStats)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Post("/submit", h.handleSubmit)
			r.Post("/approve", h.handleApprove)
			r.Post("/reject", h.handleReject)
			r.Get("/audit", h.handleAuditLog)
			r.Get("/documents/{docId}", h.handleDownload)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, uploads, cleanup, err := h.parseBillForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer cleanup()

	bill, err := h.service.Create(ctx, in, uploads)
	if err != nil {
		h.writeServiceError(w, r, "create bill failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.toBillResponse(ctx, bill))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, uploads, cleanup, err := h.parseBillForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer cleanup()

	bill, err := h.service.Update(ctx, id, in, uploads)
	if err != nil {
		h.writeServiceError(w, r, "update bill failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toBillResponse(ctx, bill))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit bill failed", func(ctx context.Context, id domain.BillID) (models.Bill, error) {
		return h.service.Submit(ctx, id)
	})
}

type remarksRequest struct {
	Remarks string `json:"remarks"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	remarks, ok := decodeRemarks(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "approve bill failed", func(ctx context.Context, id domain.BillID) (models.Bill, error) {
		return h.service.Approve(ctx, id, remarks)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	remarks, ok := decodeRemarks(w, r)
	if !ok {
		return
	}
	h.transition(w, r, "reject bill failed", func(ctx context.Context, id domain.BillID) (models.Bill, error) {
		return h.service.Reject(ctx, id, remarks)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, msg string, op func(context.Context, domain.BillID) (models.Bill, error)) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bill, err := op(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toBillResponse(ctx, bill))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.writeServiceError(w, r, "delete bill failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Bill deleted successfully"})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bill, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, "get bill failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toBillResponse(ctx, bill))
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.AuditLog(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, "get bill audit log failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseBillID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docID, err := domain.ParseDocumentID(chi.URLParam(r, "docId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
		return
	}

	doc, rc, err := h.service.OpenDocument(ctx, id, docID)
	if err != nil {
		h.writeServiceError(w, r, "download document failed", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.OriginalName+`"`)
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.ErrorContext(ctx, "document stream interrupted",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) handleMyBills(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list vendor bills failed", h.service.MyBills)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list pending bills failed", h.service.PendingBills)
}

func (h *Handler) handleApproved(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list approved bills failed", h.service.ApprovedBills)
}

func (h *Handler) handleRejected(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, "list rejected bills failed", h.service.RejectedBills)
}

func (h *Handler) listWith(w http.ResponseWriter, r *http.Request, msg string, list func(context.Context) ([]models.Bill, error)) {
	ctx := r.Context()
	bills, err := list(ctx)
	if err != nil {
		h.writeServiceError(w, r, msg, err)
		return
	}
	h.writeBillList(w, ctx, bills)
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := service.AdminFilter{
		Status:   q.Get("status"),
		Month:    q.Get("month"),
		District: q.Get("district"),
	}
	if year := q.Get("year"); year != "" {
		f.Year, _ = strconv.Atoi(year)
	}
	if vendor := q.Get("vendorId"); vendor != "" {
		id, err := domain.ParseUserID(vendor)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid vendorId filter"))
			return
		}
		f.VendorID = id
	}

	bills, err := h.service.AdminBills(ctx, f)
	if err != nil {
		h.writeServiceError(w, r, "admin bill list failed", err)
		return
	}
	h.writeBillList(w, ctx, bills)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.service.StatusCounts(ctx)
	if err != nil {
		h.writeServiceError(w, r, "bill stats failed", err)
		return
	}
	resp := make(map[string]int, len(counts))
	for status, n := range counts {
		resp[status.String()] = n
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// parseBillForm reads the multipart create/update payload. The returned
// cleanup closes the opened file parts.
func (h *Handler) parseBillForm(r *http.Request) (models.BillInput, []service.DocumentUpload, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		return models.BillInput{}, nil, noop, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form")
	}

	in := models.BillInput{
		Month:   r.FormValue("month"),
		Remarks: r.FormValue("remarks"),
	}
	if year := r.FormValue("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return models.BillInput{}, nil, noop, dErrors.New(dErrors.CodeValidation, "year must be an integer")
		}
		in.Year = y
	}
	if total := r.FormValue("totalAmount"); total != "" {
		amount, err := strconv.ParseFloat(total, 64)
		if err != nil {
			return models.BillInput{}, nil, noop, dErrors.New(dErrors.CodeValidation, "totalAmount must be a number")
		}
		in.TotalAmount = amount
	}

	allocations, err := models.ParseAllocations(r.FormValue("districtData"), h.strict)
	if err != nil {
		return models.BillInput{}, nil, noop, err
	}
	in.Allocations = allocations

	files := r.MultipartForm.File["documents"]
	if len(files) > maxFiles {
		return models.BillInput{}, nil, noop, dErrors.Newf(dErrors.CodeValidation, "at most %d documents per upload", maxFiles)
	}

	var (
		uploads []service.DocumentUpload
		opened  []multipart.File
	)
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		contentType, ok := allowedExtensions[ext]
		if !ok {
			cleanup()
			return models.BillInput{}, nil, noop, dErrors.New(dErrors.CodeValidation, "only pdf, xlsx and xls documents are accepted")
		}
		if fh.Size > maxFileSize {
			cleanup()
			return models.BillInput{}, nil, noop, dErrors.New(dErrors.CodeValidation, "documents are limited to 15MB each")
		}
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return models.BillInput{}, nil, noop, dErrors.Wrap(err, dErrors.CodeInternal, "read upload")
		}
		opened = append(opened, f)
		uploads = append(uploads, service.DocumentUpload{
			Name:        filepath.Base(fh.Filename),
			ContentType: contentType,
			Size:        fh.Size,
			Content:     f,
		})
	}
	return in, uploads, cleanup, nil
}

func decodeRemarks(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", true
	}
	var req remarksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return "", false
	}
	return req.Remarks, true
}

func parseBillID(r *http.Request) (domain.BillID, error) {
	id, err := domain.ParseBillID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.BillID{}, dErrors.New(dErrors.CodeNotFound, "bill not found")
	}
	return id, nil
}

func (h *Handler) writeBillList(w http.ResponseWriter, ctx context.Context, bills []models.Bill) {
	resp := make([]billResponse, 0, len(bills))
	for _, bill := range bills {
		resp = append(resp, h.toBillResponse(ctx, bill))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
