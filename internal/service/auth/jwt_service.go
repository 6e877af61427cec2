package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenType distinguishes short-lived access tokens from long-lived refresh
// tokens so one can never be spent as the other.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// JWTService issues and validates the access/refresh token pair used by the API.
type JWTService interface {
	// GenerateToken creates a signed access token for the given user.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken verifies an access token and extracts its claims.
	// Returns ErrExpiredToken, ErrWrongTokenType or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken creates a signed refresh token for the given user.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateRefreshToken verifies a refresh token and extracts its claims.
	// Returns ErrExpiredToken, ErrWrongTokenType or ErrInvalidToken on failure.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims carries the verified contents of a token after validation.
type Claims struct {
	// UserID is the user the token was issued for.
	UserID uuid.UUID

	// TokenType records whether this is an access or refresh token.
	TokenType TokenType

	IssuedAt  time.Time
	ExpiresAt time.Time

	// ID is the unique token identifier (the jti claim).
	ID string
}
