// Package httptransport composes the HTTP surface: middleware chain, public
// auth routes, and the authenticated API. Business logic stays in the
// feature services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "github.com/AshishBhandari123/bvas-project/internal/audit/handler"
	billhandler "github.com/AshishBhandari123/bvas-project/internal/bill/handler"
	identityhandler "github.com/AshishBhandari123/bvas-project/internal/identity/handler"
	"github.com/AshishBhandari123/bvas-project/internal/platform/metrics"
	"github.com/AshishBhandari123/bvas-project/internal/platform/middleware"
	"github.com/AshishBhandari123/bvas-project/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Deps are the wired collaborators the router needs.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	TokenValidator middleware.TokenValidator
	Revocations    middleware.RevocationList
	Actors         middleware.ActorLoader

	Identity *identityhandler.Handler
	Bills    *billhandler.Handler
	Audit    *audithandler.Handler
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	if d.Metrics != nil {
		r.Use(middleware.Latency(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		d.Identity.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.TokenValidator, d.Revocations, d.Actors, d.Logger))
		d.Identity.Register(r)
		d.Bills.Register(r)
		d.Audit.Register(r)
	})

	return r
}
