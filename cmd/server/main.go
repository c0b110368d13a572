package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "tablebook/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"tablebook/internal/auth"
	"tablebook/internal/cache"
	"tablebook/internal/config"
	"tablebook/internal/db"
	"tablebook/internal/handler"
	"tablebook/internal/logging"
	"tablebook/internal/repository"
	"tablebook/internal/router"
	"tablebook/internal/service"
	"tablebook/internal/slots"
	"tablebook/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Table Reservation API
// @version 1.0
// @description Restaurant table booking with session authentication, per-slot conflict detection and admin oversight.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}

	if cfg.ResetDB {
		log.Warn(ctx, "RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			return err
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	redisClient := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cacheClient := cache.New(redisClient)

	avatars, err := newAvatarStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("avatar storage: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	reservationRepo := repository.NewReservationRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.SessionSecret)
	sessions := auth.NewSessionManager(jwtService, newSessionStore(redisClient), cfg.SessionTTL)

	// Initialize services
	authService := service.NewAuthService(userRepo, auth.NewBcryptHasher(0), sessions, log)
	userService := service.NewUserService(userRepo, cacheClient, avatars, cfg.AvatarMaxBytes, log)
	reservationService := service.NewReservationService(reservationRepo, slots.Default, cacheClient, log)

	if _, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, cfg, log, sessions, router.Handlers{
		Auth: handler.NewAuthHandler(authService, handler.CookieConfig{
			Name:   cfg.SessionCookie,
			Secure: cfg.CookieSecure,
			TTL:    cfg.SessionTTL,
		}),
		Reservation: handler.NewReservationHandler(reservationService),
		User:        handler.NewUserHandler(userService, cfg.AvatarMaxBytes),
	})

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "addr", addr, "driver", cfg.DBDriver, "redis", redisClient != nil)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server start: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newSessionStore keeps sessions in Redis when it is configured, in process
// memory otherwise.
func newSessionStore(client *redis.Client) auth.SessionStore {
	if client == nil {
		return auth.NewMemorySessionStore()
	}
	return auth.NewRedisSessionStore(client)
}

func newAvatarStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.AvatarStorage {
	case config.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return storage.NewLocalStore(cfg.UploadsDir, "/uploads")
	}
}
