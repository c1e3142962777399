package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// TokenClaims is what the auth middleware expects back from token validation.
type TokenClaims struct {
	UserID   domain.UserID
	Username string
	Role     domain.Role
	District string
	TokenID  string
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// RevocationList answers whether a token ID has been revoked (logout).
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ActorLoader resolves the current account state for a token's user. The
// middleware rejects tokens whose account has been deactivated since issuance.
type ActorLoader interface {
	LoadActor(ctx context.Context, id domain.UserID) (domain.Actor, bool, error)
}

// RequireAuth validates the bearer token, checks revocation and account
// state, and injects the actor into the request context.
func RequireAuth(validator TokenValidator, revoked RevocationList, actors ActorLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(ctx, claims.TokenID)
				if err != nil {
					logger.ErrorContext(ctx, "revocation check failed",
						"request_id", requestID,
						"error", err,
					)
					writeAuthError(w, http.StatusInternalServerError, "")
					return
				}
				if isRevoked {
					writeAuthError(w, http.StatusUnauthorized, "Token has been revoked")
					return
				}
			}

			actor, active, err := actors.LoadActor(ctx, claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown user",
					"request_id", requestID,
					"user_id", claims.UserID.String(),
				)
				writeAuthError(w, http.StatusUnauthorized, "Unknown user")
				return
			}
			if !active {
				writeAuthError(w, http.StatusForbidden, "Account is deactivated")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

// RequireRole gates a route to the listed roles. Must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := requestcontext.Actor(r.Context())
			if actor.IsZero() {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				logger.WarnContext(r.Context(), "role forbidden",
					"request_id", requestcontext.RequestID(r.Context()),
					"role", actor.Role.String(),
					"path", r.URL.Path,
				)
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	code := "unauthorized"
	switch status {
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusInternalServerError:
		code = "internal_error"
	}
	if description == "" {
		_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
		return
	}
	_, _ = w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`))
}
