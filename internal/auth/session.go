package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "tablebook/internal/errors"
)

// SessionManager issues, resolves and destroys session tokens. A token is a
// signed JWT naming a session record; it resolves only while the record exists.
type SessionManager struct {
	jwt   *JWTService
	store SessionStore
	ttl   time.Duration
}

// NewSessionManager creates a session manager.
func NewSessionManager(jwtService *JWTService, store SessionStore, ttl time.Duration) *SessionManager {
	return &SessionManager{jwt: jwtService, store: store, ttl: ttl}
}

// TTL returns the lifetime of newly issued sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for id and returns its token.
func (m *SessionManager) Issue(ctx context.Context, id Identity) (string, error) {
	sessionID := generateSessionID()

	token, err := m.jwt.GenerateSessionToken(sessionID, id.UserID, m.ttl)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	if err := m.store.Save(ctx, sessionID, id, m.ttl); err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}
	return token, nil
}

// Resolve returns the identity behind token, or ErrUnauthenticated when the
// token is malformed, expired or its session was destroyed.
func (m *SessionManager) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return Identity{}, apperrors.ErrUnauthenticated
	}

	id, err := m.store.Load(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Identity{}, apperrors.ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}
	if id.UserID.String() != claims.UserID {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	return id, nil
}

// Destroy removes the session behind token. Unknown or invalid tokens are ignored.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}
	return nil
}
