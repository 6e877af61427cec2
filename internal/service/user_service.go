package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumenhq/fable-api/internal/domain"
	"github.com/lumenhq/fable-api/internal/platform/logger"
	"github.com/lumenhq/fable-api/internal/service/auth"
	"github.com/lumenhq/fable-api/internal/store"
)

// UserService provides account registration and credential checks. Token
// issuance lives in the API layer on top of auth.JWTService.
type UserService interface {
	// Register creates a new account. Returns ErrEmailTaken when the email
	// is already in use and the domain validation error when the email or
	// password is malformed.
	Register(ctx context.Context, email, password string) (*domain.User, error)

	// Authenticate verifies a login. Returns ErrInvalidCredentials for an
	// unknown email or a wrong password, without distinguishing the two.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

// userServiceImpl implements the UserService interface.
type userServiceImpl struct {
	db       *sql.DB
	users    store.UserStore
	verifier auth.PasswordVerifier
	logger   *slog.Logger
}

var _ UserService = (*userServiceImpl)(nil)

// NewUserService creates a new UserService.
func NewUserService(
	db *sql.DB,
	users store.UserStore,
	verifier auth.PasswordVerifier,
	log *slog.Logger,
) (UserService, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if users == nil {
		return nil, errors.New("user store cannot be nil")
	}
	if verifier == nil {
		return nil, errors.New("password verifier cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &userServiceImpl{
		db:       db,
		users:    users,
		verifier: verifier,
		logger:   log.With(slog.String("component", "user_service")),
	}, nil
}

func (s *userServiceImpl) Register(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, err
	}

	// The store hashes the password inside the transaction, so a commit
	// implies the plaintext never reached disk.
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()))

	return user, nil
}

func (s *userServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user for login: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Debug("password mismatch on login",
			slog.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
