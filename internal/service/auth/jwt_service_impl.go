package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/platform/logger"
)

// allowedClockSkew tolerates minor drift between the clock that signed a
// token and the clock validating it.
const allowedClockSkew = 2 * time.Minute

// hmacJWTService implements JWTService using HMAC-SHA256 signing.
type hmacJWTService struct {
	signingKey      []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	timeFunc        func() time.Time
	logger          *slog.Logger
}

var _ JWTService = (*hmacJWTService)(nil)

// tokenClaims is the wire shape of the JWT payload.
type tokenClaims struct {
	UserID    uuid.UUID `json:"uid"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTService creates a JWTService from the auth configuration.
func NewJWTService(cfg config.AuthConfig, log *slog.Logger) (JWTService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &hmacJWTService{
		signingKey:      []byte(cfg.JWTSecret),
		accessLifetime:  time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		refreshLifetime: time.Duration(cfg.RefreshTokenLifetimeMinutes) * time.Minute,
		timeFunc:        time.Now,
		logger:          log.With(slog.String("component", "jwt_service")),
	}, nil
}

func (s *hmacJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.generate(ctx, userID, TokenTypeAccess, s.accessLifetime)
}

func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, TokenTypeAccess)
}

func (s *hmacJWTService) GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.generate(ctx, userID, TokenTypeRefresh, s.refreshLifetime)
}

func (s *hmacJWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(ctx, tokenString, TokenTypeRefresh)
}

// generate signs a token of the given type. Access and refresh tokens share
// the same claim shape and differ only in type and lifetime.
func (s *hmacJWTService) generate(
	ctx context.Context,
	userID uuid.UUID,
	tokenType TokenType,
	lifetime time.Duration,
) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	claims := tokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign token",
			slog.String("token_type", string(tokenType)),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// validate parses a token, verifies its signature and time claims, and
// checks it carries the wanted type.
func (s *hmacJWTService) validate(ctx context.Context, tokenString string, want TokenType) (*Claims, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(allowedClockSkew),
		jwt.WithTimeFunc(s.timeFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		log.Debug("token validation failed",
			slog.String("token_type", string(want)),
			slog.String("error", err.Error()))
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		log.Debug("token presented with wrong type",
			slog.String("want", string(want)),
			slog.String("got", string(claims.TokenType)))
		return nil, ErrWrongTokenType
	}

	return &Claims{
		UserID:    claims.UserID,
		TokenType: claims.TokenType,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		ID:        claims.RegisteredClaims.ID,
	}, nil
}
