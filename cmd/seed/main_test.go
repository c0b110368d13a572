package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tablebook/internal/auth"
	"tablebook/internal/db/dbtest"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/repository"
	"tablebook/internal/service"
)

const usersJSON = `[
	{"username": "ana", "password": "secret", "role": "user"},
	{"username": "chef", "password": "secret", "role": "admin"},
	{"username": "ana", "password": "again"},
	{"username": "ghost", "password": "secret", "role": "owner"},
	{"username": "", "password": "secret"}
]`

func TestLoadUsers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(usersJSON), 0o600))

	users, err := loadUsers(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, users, 5)
	assert.Equal(t, "chef", users[1].Username)
}

func TestLoadUsers_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(usersJSON))
	}))
	defer srv.Close()

	users, err := loadUsers(context.Background(), srv.URL+"/users.json")
	require.NoError(t, err)
	assert.Len(t, users, 5)

	_, err = loadUsers(context.Background(), srv.URL+"/missing.json")
	assert.Error(t, err)
}

func TestSeedUsers(t *testing.T) {
	gormDB := dbtest.New(t)
	users := repository.NewUserRepository(gormDB)
	sessions := auth.NewSessionManager(auth.NewJWTService("x"), auth.NewMemorySessionStore(), time.Hour)
	authService := service.NewAuthService(users, auth.NewBcryptHasher(bcrypt.MinCost), sessions, logging.Nop())

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(usersJSON), 0o600))
	list, err := loadUsers(context.Background(), path)
	require.NoError(t, err)

	result, err := seedUsers(context.Background(), authService, logging.Nop(), list)
	require.NoError(t, err)
	assert.Equal(t, 2, result.created)
	assert.Equal(t, 3, result.skipped)

	chef, err := users.FindByUsername(context.Background(), "chef")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, chef.Role)

	// Running again creates nothing.
	result, err = seedUsers(context.Background(), authService, logging.Nop(), list)
	require.NoError(t, err)
	assert.Zero(t, result.created)
}
