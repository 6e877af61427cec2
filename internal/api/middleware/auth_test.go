package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/fable-api/internal/api/middleware"
	"github.com/lumenhq/fable-api/internal/api/shared"
	"github.com/lumenhq/fable-api/internal/service/auth"
)

// jwtServiceStub returns canned claims or an error from token validation.
type jwtServiceStub struct {
	claims *auth.Claims
	err    error
}

func (s *jwtServiceStub) GenerateToken(_ context.Context, _ uuid.UUID) (string, error) {
	return "stub-access-token", nil
}

func (s *jwtServiceStub) ValidateToken(_ context.Context, _ string) (*auth.Claims, error) {
	return s.claims, s.err
}

func (s *jwtServiceStub) GenerateRefreshToken(_ context.Context, _ uuid.UUID) (string, error) {
	return "stub-refresh-token", nil
}

func (s *jwtServiceStub) ValidateRefreshToken(_ context.Context, _ string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

var _ auth.JWTService = (*jwtServiceStub)(nil)

// runAuthenticated sends a request through the middleware and reports the
// user ID the wrapped handler observed, if it ran at all.
func runAuthenticated(
	t *testing.T,
	stub *jwtServiceStub,
	authHeader string,
) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()

	var (
		sawHandler bool
		sawUserID  uuid.UUID
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		require.True(t, ok, "handler should see the user ID")
		sawHandler = true
		sawUserID = userID
		w.WriteHeader(http.StatusOK)
	})

	m := middleware.NewAuthMiddleware(stub)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/stories", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}

	m.Authenticate(next).ServeHTTP(w, r)
	return w, sawUserID, sawHandler
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("valid token reaches the handler", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{claims: &auth.Claims{UserID: userID, TokenType: auth.TokenTypeAccess}}
		w, sawUserID, sawHandler := runAuthenticated(t, stub, "Bearer some.jwt.token")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, sawHandler)
		assert.Equal(t, userID, sawUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{claims: &auth.Claims{UserID: userID}}
		w, _, sawHandler := runAuthenticated(t, stub, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, sawHandler)
		assert.Equal(t, "Authorization header required", errorBody(t, w))
	})

	t.Run("malformed header", func(t *testing.T) {
		t.Parallel()

		for _, header := range []string{"some.jwt.token", "Basic some.jwt.token", "Bearer a b"} {
			stub := &jwtServiceStub{claims: &auth.Claims{UserID: userID}}
			w, _, sawHandler := runAuthenticated(t, stub, header)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
			assert.False(t, sawHandler, "header %q", header)
			assert.Equal(t, "Invalid authorization format", errorBody(t, w))
		}
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{err: auth.ErrExpiredToken}
		w, _, sawHandler := runAuthenticated(t, stub, "Bearer some.jwt.token")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, sawHandler)
		assert.Equal(t, "Token expired", errorBody(t, w))
	})

	t.Run("invalid token", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{err: auth.ErrInvalidToken}
		w, _, sawHandler := runAuthenticated(t, stub, "Bearer garbage")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, sawHandler)
		assert.Equal(t, "Invalid token", errorBody(t, w))
	})

	t.Run("refresh token on an access route", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{err: auth.ErrWrongTokenType}
		w, _, sawHandler := runAuthenticated(t, stub, "Bearer some.jwt.token")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, sawHandler)
		assert.Equal(t, "Invalid token", errorBody(t, w))
	})

	t.Run("unexpected validation failure", func(t *testing.T) {
		t.Parallel()

		stub := &jwtServiceStub{err: errors.New("keyring unavailable")}
		w, _, sawHandler := runAuthenticated(t, stub, "Bearer some.jwt.token")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.False(t, sawHandler)
		assert.Equal(t, "Authentication error", errorBody(t, w))
	})
}

func TestGetUserIDWithoutMiddleware(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/api/stories", nil)
	_, ok := middleware.GetUserID(r)
	assert.False(t, ok)
}
