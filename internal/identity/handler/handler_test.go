package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	auditstore "github.com/AshishBhandari123/bvas-project/internal/audit/store"
	"github.com/AshishBhandari123/bvas-project/internal/identity/models"
	"github.com/AshishBhandari123/bvas-project/internal/identity/service"
	"github.com/AshishBhandari123/bvas-project/internal/identity/store"
	"github.com/AshishBhandari123/bvas-project/internal/jwttoken"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(auditstore.NewMemory(), logger)
	tokens := jwttoken.NewService("test-secret", "bvas", time.Hour)
	svc := service.NewService(store.NewMemory(), tokens, recorder, logger,
		service.WithBcryptCost(bcrypt.MinCost))
	return New(svc, logger), svc
}

// actorMiddleware stands in for RequireAuth in handler-level tests.
func actorMiddleware(actor domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	h.RegisterPublic(router)

	rec := postJSON(t, router, "/auth/register", map[string]string{
		"username": "vendor1",
		"email":    "vendor1@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotContains(t, string(resp.User), "password")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := postJSON(t, router, "/auth/register", map[string]string{
			"username": "vendor1",
			"email":    "other@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("admin role rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/auth/register", map[string]string{
			"username": "boss",
			"email":    "boss@example.com",
			"password": "secret123",
			"role":     "super_admin",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	h, svc := newTestHandler(t)
	router := chi.NewRouter()
	h.RegisterPublic(router)

	_, err := svc.CreateUser(adminCtx(), newUserInput("vendor1", "vendor1@example.com"))
	require.NoError(t, err)

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"username": "vendor1", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/auth/login", map[string]string{
		"username": "vendor1", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserManagementEndpoints(t *testing.T) {
	admin := domain.Actor{ID: domain.NewUserID(), Username: "hqadmin", Role: domain.RoleHQAdmin}

	newRouter := func(h *Handler, actor domain.Actor) http.Handler {
		router := chi.NewRouter()
		router.Group(func(r chi.Router) {
			r.Use(actorMiddleware(actor))
			h.Register(r)
		})
		return router
	}

	t.Run("admin can create, list and deactivate users", func(t *testing.T) {
		h, _ := newTestHandler(t)
		router := newRouter(h, admin)

		rec := postJSON(t, router, "/users", map[string]string{
			"username": "verifier1",
			"email":    "verifier1@example.com",
			"password": "secret123",
			"role":     "district_verifier",
			"district": "Dehradun",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created struct {
			ID       string `json:"id"`
			District string `json:"district"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "Dehradun", created.District)

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		list := httptest.NewRecorder()
		router.ServeHTTP(list, req)
		require.Equal(t, http.StatusOK, list.Code)
		var users []json.RawMessage
		require.NoError(t, json.Unmarshal(list.Body.Bytes(), &users))
		assert.Len(t, users, 1)

		del := httptest.NewRecorder()
		router.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/users/"+created.ID, nil))
		assert.Equal(t, http.StatusOK, del.Code)
	})

	t.Run("vendors are forbidden", func(t *testing.T) {
		h, _ := newTestHandler(t)
		vendor := domain.Actor{ID: domain.NewUserID(), Username: "vendor1", Role: domain.RoleVendor}
		router := newRouter(h, vendor)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed user id is not-found", func(t *testing.T) {
		h, _ := newTestHandler(t)
		router := newRouter(h, admin)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func adminCtx() context.Context {
	admin := domain.Actor{ID: domain.NewUserID(), Username: "hqadmin", Role: domain.RoleHQAdmin}
	return requestcontext.WithActor(context.Background(), admin)
}

func newUserInput(username, email string) models.NewUserInput {
	return models.NewUserInput{
		Username: username,
		Email:    email,
		Password: "secret123",
	}
}
