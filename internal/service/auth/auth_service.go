package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
)

// Service validates first-party session tokens. Token issuance belongs to
// the auth subsystem; this service only verifies what it is handed.
type Service struct {
	secret []byte
	logger *logger.Logger
}

// NewService creates a new auth service
func NewService(jwtSecret string, logger *logger.Logger) *Service {
	return &Service{
		secret: []byte(jwtSecret),
		logger: logger,
	}
}

// ValidateToken verifies an HS256 JWT and returns its identity claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		s.logger.WithError(err).Debug("Token validation failed")
		return nil, apperrors.NewAuthenticationError("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.NewAuthenticationError("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, apperrors.NewAuthenticationError("token has no subject")
	}

	authClaims := &domain.AuthClaims{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		authClaims.Email = email
	}

	return authClaims, nil
}
