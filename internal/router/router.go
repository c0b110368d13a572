package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"tablebook/internal/auth"
	"tablebook/internal/config"
	"tablebook/internal/handler"
	"tablebook/internal/logging"
	"tablebook/internal/model"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reservation *handler.ReservationHandler
	User        *handler.UserHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log logging.Logger,
	sessions *auth.SessionManager,
	h Handlers,
) {
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(log))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if cfg.AvatarStorage == config.StorageLocal {
		e.Static("/uploads", cfg.UploadsDir)
	}

	api := e.Group("/api", Session(sessions, cfg.SessionCookie))

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/slots/free", h.Reservation.FreeSlots)

	// Secured routes (require a session)
	secured := api.Group("", RequireAuthenticated(cfg.LoginPath))

	secured.GET("/me", h.User.Me)
	secured.POST("/me/avatar", h.User.UploadAvatar)
	secured.DELETE("/me/avatar", h.User.DeleteAvatar)

	secured.GET("/reservations", h.Reservation.ListOwn)
	secured.POST("/reservations", h.Reservation.Create)
	secured.PUT("/reservations/:id", h.Reservation.Update)
	secured.DELETE("/reservations/:id", h.Reservation.Delete)

	// Admin routes
	admin := secured.Group("/admin", RequireRole(model.RoleAdmin))

	admin.GET("/reservations", h.Reservation.ListAll)
	admin.GET("/reservations/search", h.Reservation.Search)
	admin.GET("/users", h.User.ListUsers)
	admin.POST("/users/:id/promote", h.User.Promote)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
