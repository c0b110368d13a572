package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/cache"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/policy"
	"tablebook/internal/repository"
	"tablebook/internal/storage"
)

const userCacheTTL = 5 * time.Minute

// Profile is a user record with a fetchable avatar location.
type Profile struct {
	model.User
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserService exposes profile, avatar and role operations.
type UserService interface {
	Profile(ctx context.Context) (*Profile, error)
	SetAvatar(ctx context.Context, data []byte) (*Profile, error)
	ClearAvatar(ctx context.Context) (*Profile, error)
	Promote(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	cache     *cache.Client
	store     storage.Store
	maxAvatar int64
	log       logging.Logger
}

// NewUserService builds a UserService with repository, cache and avatar store.
func NewUserService(repo repository.UserRepository, cache *cache.Client, store storage.Store, maxAvatar int64, log logging.Logger) UserService {
	return &userService{
		repo:      repo,
		cache:     cache,
		store:     store,
		maxAvatar: maxAvatar,
		log:       log.With("component", "user_service"),
	}
}

func userVersionKey(id uuid.UUID) string {
	return fmt.Sprintf("user:ver:%s", id)
}

func userKey(id uuid.UUID, version int64) string {
	return fmt.Sprintf("user:%s:%d", id, version)
}

func (s *userService) invalidate(ctx context.Context, id uuid.UUID) {
	_ = s.cache.Bump(ctx, userVersionKey(id), versionTTL)
}

// getUser reads through the profile cache. Entries are keyed by the user's
// write version, so a read racing an update never refreshes the current key
// with the old record.
func (s *userService) getUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	version, cacheable := s.cache.Version(ctx, userVersionKey(id))
	if cacheable {
		if data, _ := s.cache.Get(ctx, userKey(id, version)); data != nil {
			var cached model.User
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find user", err)
	}

	if cacheable {
		if payload, err := json.Marshal(user); err == nil {
			_ = s.cache.Set(ctx, userKey(id, version), payload, userCacheTTL)
		}
	}
	return user, nil
}

func (s *userService) profileOf(ctx context.Context, user *model.User) *Profile {
	p := &Profile{User: *user}
	if user.AvatarRef != nil {
		url, err := s.store.URL(ctx, *user.AvatarRef)
		if err != nil {
			s.log.Warn(ctx, "resolve avatar url", "user_id", user.ID, "error", err)
		} else {
			p.AvatarURL = url
		}
	}
	return p
}

// Profile returns the caller's own record.
func (s *userService) Profile(ctx context.Context) (*Profile, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.profileOf(ctx, user), nil
}

// SetAvatar validates and stores data as the caller's avatar, replacing any
// previous one. The old file is removed best-effort once the new reference
// is saved.
func (s *userService) SetAvatar(ctx context.Context, data []byte) (*Profile, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	img, err := storage.ValidateImage(data, s.maxAvatar)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, storageErr("find user", err)
	}
	previous := user.AvatarRef

	ref, err := s.store.Put(ctx, img.Data, img.ContentType, img.Ext)
	if err != nil {
		return nil, fmt.Errorf("%w: store avatar: %w", apperrors.ErrStorage, err)
	}

	if err := s.repo.UpdateAvatar(ctx, user.ID, &ref); err != nil {
		s.removeFile(ctx, user.ID, ref)
		return nil, storageErr("save avatar", err)
	}
	s.invalidate(ctx, user.ID)

	if previous != nil && *previous != ref {
		s.removeFile(ctx, user.ID, *previous)
	}

	user.AvatarRef = &ref
	s.log.Info(ctx, "avatar updated", "user_id", user.ID)
	return s.profileOf(ctx, user), nil
}

// ClearAvatar drops the caller's avatar reference and removes the file best-effort.
func (s *userService) ClearAvatar(ctx context.Context) (*Profile, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, storageErr("find user", err)
	}
	if user.AvatarRef == nil {
		return s.profileOf(ctx, user), nil
	}
	previous := *user.AvatarRef

	if err := s.repo.UpdateAvatar(ctx, user.ID, nil); err != nil {
		return nil, storageErr("clear avatar", err)
	}
	s.invalidate(ctx, user.ID)
	s.removeFile(ctx, user.ID, previous)

	user.AvatarRef = nil
	return s.profileOf(ctx, user), nil
}

func (s *userService) removeFile(ctx context.Context, userID uuid.UUID, ref string) {
	if err := s.store.Delete(ctx, ref); err != nil {
		s.log.Warn(ctx, "remove avatar file", "user_id", userID, "ref", ref, "error", err)
	}
}

// Promote grants the admin role to the user with id. Promoting an admin is a no-op.
func (s *userService) Promote(ctx context.Context, id uuid.UUID) (*model.User, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAdmin(caller); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find user", err)
	}
	if user.Role == model.RoleAdmin {
		return user, nil
	}

	if err := s.repo.UpdateRole(ctx, id, model.RoleAdmin); err != nil {
		return nil, storageErr("update role", err)
	}
	s.invalidate(ctx, id)

	user.Role = model.RoleAdmin
	s.log.Info(ctx, "user promoted", "user_id", id, "by", caller.UserID)
	return user, nil
}

// List returns every user. Admin only.
func (s *userService) List(ctx context.Context) ([]model.User, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAdmin(caller); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}
