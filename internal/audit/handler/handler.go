// Package handler exposes the admin-only audit trail listing.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	"github.com/AshishBhandari123/bvas-project/internal/platform/middleware"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/httputil"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// Handler serves the system audit trail to admins.
type Handler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

func New(recorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts the audit routes. The parent router must already enforce
// authentication.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, domain.RoleHQAdmin, domain.RoleSuperAdmin))
		r.Get("/audit", h.handleList)
	})
}

type entryResponse struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	EntityType  string `json:"entityType"`
	EntityID    string `json:"entityId"`
	PerformedBy string `json:"performedBy"`
	PerformedAt string `json:"performedAt"`
	Details     string `json:"details,omitempty"`
	IPAddress   string `json:"ipAddress,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
}

type listResponse struct {
	Entries    []entryResponse `json:"logs"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"currentPage"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := audit.Query{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		Action:     r.URL.Query().Get("action"),
	}
	if page := r.URL.Query().Get("page"); page != "" {
		q.Page, _ = strconv.Atoi(page)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		q.Limit, _ = strconv.Atoi(limit)
	}
	q = q.Normalize()

	entries, total, err := h.recorder.List(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit entries"))
		return
	}

	resp := listResponse{
		Entries:    make([]entryResponse, 0, len(entries)),
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
		Page:       q.Page,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:          e.ID.String(),
			Action:      e.Action,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			PerformedBy: e.PerformedBy.String(),
			PerformedAt: e.PerformedAt.Format(time.RFC3339),
			Details:     e.Details,
			IPAddress:   e.IPAddress,
			UserAgent:   e.UserAgent,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
