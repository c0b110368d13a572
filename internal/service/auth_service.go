package service

import (
	"context"
	"fmt"
	"strings"

	"tablebook/internal/auth"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/repository"
)

const (
	maxUsernameLen = 64
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

// AuthService handles registration, login and logout.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, string, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	Logout(ctx context.Context, token string) error
	CreateUser(ctx context.Context, username, password string, role model.Role) (*model.User, error)
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
}

type authService struct {
	users    repository.UserRepository
	hasher   auth.PasswordHasher
	sessions *auth.SessionManager
	log      logging.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, hasher auth.PasswordHasher, sessions *auth.SessionManager, log logging.Logger) AuthService {
	return &authService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		log:      log.With("component", "auth_service"),
	}
}

// Register creates a user with the default role and opens a session for it.
// No session is created when registration fails.
func (s *authService) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.CreateUser(ctx, username, password, model.RoleUser)
	if err != nil {
		return nil, "", err
	}

	token, err := s.sessions.Issue(ctx, auth.IdentityOf(user))
	if err != nil {
		return nil, "", err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

// Login verifies credentials and opens a session. Unknown usernames and wrong
// passwords fail the same way.
func (s *authService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", storageErr("find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(ctx, auth.IdentityOf(user))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout destroys the session behind token.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}

// CreateUser stores a new user with a hashed password.
func (s *authService) CreateUser(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}

	// Check if user already exists
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, apperrors.ErrDuplicateUsername
	} else if !repository.IsNotFound(err) {
		return nil, storageErr("check username", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Username: username, PasswordHash: digest, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can win between the lookup and the insert.
		if repository.IsDuplicateKey(err) {
			return nil, apperrors.ErrDuplicateUsername
		}
		return nil, storageErr("create user", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin when no admin exists yet. It reports
// whether a user was created.
func (s *authService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	exists, err := s.users.ExistsWithRole(ctx, model.RoleAdmin)
	if err != nil {
		return false, storageErr("check admin", err)
	}
	if exists {
		return false, nil
	}

	user, err := s.CreateUser(ctx, username, password, model.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.log.Info(ctx, "bootstrap admin created", "user_id", user.ID, "username", user.Username)
	return true, nil
}

func validateCredentials(username, password string) error {
	switch {
	case username == "" || password == "":
		return fmt.Errorf("%w: username and password are required", apperrors.ErrValidation)
	case len(username) > maxUsernameLen:
		return fmt.Errorf("%w: username must be at most %d characters", apperrors.ErrValidation, maxUsernameLen)
	case len(password) > maxPasswordLen:
		return fmt.Errorf("%w: password must be at most %d bytes", apperrors.ErrValidation, maxPasswordLen)
	}
	return nil
}
