package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tablebook/internal/auth"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/model"
)

func TestCanModify_Exhaustive(t *testing.T) {
	owner := auth.Identity{UserID: uuid.New(), Username: "owner", Role: model.RoleUser}
	other := auth.Identity{UserID: uuid.New(), Username: "other", Role: model.RoleUser}
	admin := auth.Identity{UserID: uuid.New(), Username: "admin", Role: model.RoleAdmin}

	own := func(id auth.Identity) *model.Reservation { return &model.Reservation{ID: uuid.New(), UserID: id.UserID} }
	foreign := &model.Reservation{ID: uuid.New(), UserID: uuid.New()}

	tests := []struct {
		name   string
		caller auth.Identity
		res    *model.Reservation
		want   bool
	}{
		{"admin on own", admin, own(admin), true},
		{"admin on foreign", admin, foreign, true},
		{"owner on own", owner, own(owner), true},
		{"owner on foreign", owner, foreign, false},
		{"other user on owner's", other, own(owner), false},
		{"other user on foreign", other, foreign, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanModify(tt.caller, tt.res))

			err := RequireModify(tt.caller, tt.res)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrForbidden)
			}
		})
	}
}

func TestAdminOnlyDecisions(t *testing.T) {
	user := auth.Identity{UserID: uuid.New(), Role: model.RoleUser}
	admin := auth.Identity{UserID: uuid.New(), Role: model.RoleAdmin}

	assert.False(t, CanPromote(user))
	assert.True(t, CanPromote(admin))
	assert.False(t, CanBrowseAll(user))
	assert.True(t, CanBrowseAll(admin))

	assert.ErrorIs(t, RequireAdmin(user), apperrors.ErrForbidden)
	assert.NoError(t, RequireAdmin(admin))
}

func TestHasRole(t *testing.T) {
	user := auth.Identity{Role: model.RoleUser}
	admin := auth.Identity{Role: model.RoleAdmin}
	unknown := auth.Identity{Role: model.Role("guest")}

	assert.True(t, HasRole(user, model.RoleUser))
	assert.False(t, HasRole(user, model.RoleAdmin))
	assert.True(t, HasRole(admin, model.RoleUser))
	assert.True(t, HasRole(admin, model.RoleAdmin))
	assert.False(t, HasRole(unknown, model.RoleUser))
	assert.False(t, HasRole(admin, model.Role("guest")))
}
