package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"tablebook/internal/auth"
	"tablebook/internal/config"
	"tablebook/internal/db"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/repository"
	"tablebook/internal/service"
)

const fetchTimeout = 30 * time.Second

// SeedUser is one entry of the users file.
type SeedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type seedResult struct {
	created int
	skipped int
}

func main() {
	usersSource := flag.String("users", os.Getenv("SEED_USERS"), "path or http(s) URL of a JSON array of users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	if err := run(ctx, cfg, log, *usersSource); err != nil {
		log.Error(ctx, "seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger, usersSource string) error {
	gormDB, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	// Seeding never opens sessions, so an in-memory store is enough.
	sessions := auth.NewSessionManager(auth.NewJWTService(cfg.SessionSecret), auth.NewMemorySessionStore(), cfg.SessionTTL)
	authService := service.NewAuthService(repository.NewUserRepository(gormDB), auth.NewBcryptHasher(0), sessions, log)

	created, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}
	log.Info(ctx, "admin bootstrap", "username", cfg.AdminUsername, "created", created)

	if usersSource == "" {
		return nil
	}

	users, err := loadUsers(ctx, usersSource)
	if err != nil {
		return err
	}
	log.Info(ctx, "users loaded", "source", usersSource, "count", len(users))

	result, err := seedUsers(ctx, authService, log, users)
	if err != nil {
		return err
	}
	log.Info(ctx, "seed completed", "created", result.created, "skipped", result.skipped)
	return nil
}

// loadUsers reads the users array from a local file or an HTTP(S) URL.
func loadUsers(ctx context.Context, source string) ([]SeedUser, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse users JSON: %w", err)
	}
	return users, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seedUsers creates each user, skipping usernames that already exist and
// entries that fail validation.
func seedUsers(ctx context.Context, authService service.AuthService, log logging.Logger, users []SeedUser) (seedResult, error) {
	var result seedResult
	for _, u := range users {
		role, err := model.ParseRole(u.Role)
		if err != nil {
			log.Warn(ctx, "skipping user with unknown role", "username", u.Username, "role", u.Role)
			result.skipped++
			continue
		}

		_, err = authService.CreateUser(ctx, u.Username, u.Password, role)
		switch {
		case err == nil:
			result.created++
		case errors.Is(err, apperrors.ErrDuplicateUsername), errors.Is(err, apperrors.ErrValidation):
			log.Info(ctx, "skipping user", "username", u.Username, "reason", err.Error())
			result.skipped++
		default:
			return result, fmt.Errorf("create user %q: %w", u.Username, err)
		}
	}
	return result, nil
}
