package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/fable-api/internal/api/shared"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/service"
	"github.com/lumenhq/fable-api/internal/service/auth"
)

// AuthHandler serves the registration, login and token refresh endpoints.
type AuthHandler struct {
	userService    service.UserService
	jwtService     auth.JWTService
	accessLifetime time.Duration
	logger         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. accessLifetime is only used to
// report token expiry to clients and must match the JWT service
// configuration.
func NewAuthHandler(
	userService service.UserService,
	jwtService auth.JWTService,
	accessLifetime time.Duration,
	log *slog.Logger,
) *AuthHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}

	return &AuthHandler{
		userService:    userService,
		jwtService:     jwtService,
		accessLifetime: accessLifetime,
		logger:         log.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RegisterRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	h.respondWithTokens(w, r, log, http.StatusCreated, user.ID)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// Failed logins are worth seeing in aggregate.
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid credentials",
				err, shared.WithElevatedLogLevel())
			return
		}
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithTokens(w, r, log, http.StatusOK, user.ID)
}

// RefreshToken handles POST /api/auth/refresh. A valid refresh token buys a
// fresh token pair; the presented refresh token is not invalidated, it
// simply ages out.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RefreshTokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithTokens(w, r, log, http.StatusOK, claims.UserID)
}

// respondWithTokens issues a token pair for the user and writes the auth
// response.
func (h *AuthHandler) respondWithTokens(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
	status int,
	userID uuid.UUID,
) {
	accessToken, err := h.jwtService.GenerateToken(r.Context(), userID)
	if err != nil {
		log.Error("failed to generate access token",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(r.Context(), userID)
	if err != nil {
		log.Error("failed to generate refresh token",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, status, AuthResponse{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().UTC().Add(h.accessLifetime).Format(time.RFC3339),
	})
}
