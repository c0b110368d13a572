package service

import (
	"context"
	"fmt"

	"tablebook/internal/auth"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/repository"
)

// callerFrom returns the identity of the request, or ErrUnauthenticated.
func callerFrom(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return auth.Identity{}, apperrors.ErrUnauthenticated
	}
	return id, nil
}

// storageErr classifies a repository error: missing rows become ErrNotFound,
// anything else is a storage failure.
func storageErr(what string, err error) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStorage, what, err)
}
