package jwttoken

import (
	"github.com/AshishBhandari123/bvas-project/internal/platform/middleware"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	dErrors "github.com/AshishBhandari123/bvas-project/pkg/domain-errors"
)

// MiddlewareAdapter adapts Service to the middleware.TokenValidator
// interface, translating string claims back into domain types.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}

	return &middleware.TokenClaims{
		UserID:   userID,
		Username: claims.Username,
		Role:     role,
		District: claims.District,
		TokenID:  claims.RegisteredClaims.ID,
	}, nil
}
