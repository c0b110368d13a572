package router

import (
	stderrors "errors"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tablebook/internal/auth"
	"tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/policy"
)

const identityKey = "identity"

// Session resolves the bearer token or session cookie into an identity and
// stores it in the request context. Requests without a valid session continue
// anonymously; a session store outage fails the request.
func Session(sessions *auth.SessionManager, cookieName string) echo.MiddlewareFunc {
	resolve := echojwt.WithConfig(echojwt.Config{
		ContextKey:  identityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + cookieName,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return sessions.Resolve(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if stderrors.Is(err, errors.ErrStorage) {
				mapped := errors.MapErrorToHTTP(err)
				return echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse()).SetInternal(err)
			}
			return nil
		},
		ContinueOnIgnoredError: true,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return resolve(func(c echo.Context) error {
			if id, ok := c.Get(identityKey).(auth.Identity); ok {
				req := c.Request()
				c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), id)))
			}
			return next(c)
		})
	}
}

// RequireAuthenticated rejects anonymous requests: API clients get a JSON 401,
// browsers are redirected to loginPath.
func RequireAuthenticated(loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := auth.IdentityFrom(c.Request().Context()); ok {
				return next(c)
			}
			if !wantsJSON(c.Request()) {
				return c.Redirect(http.StatusFound, loginPath)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: errors.ErrUnauthenticated.Error(),
				Code:  "UNAUTHENTICATED",
			})
		}
	}
}

// RequireRole rejects callers that do not hold role. It must run after
// RequireAuthenticated.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := auth.IdentityFrom(c.Request().Context())
			if !policy.HasRole(id, role) {
				return echo.NewHTTPError(http.StatusForbidden, errors.ErrorResponse{
					Error: errors.ErrForbidden.Error(),
					Code:  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}

// wantsJSON reports whether the request comes from an API client rather than
// a browser navigating pages.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get(echo.HeaderAuthorization) != "" {
		return true
	}
	if strings.EqualFold(r.Header.Get(echo.HeaderXRequestedWith), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// RequestLogger logs one line per request through log. Server errors are
// logged at error level with their cause.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			switch {
			case v.Status >= http.StatusInternalServerError:
				if v.Error != nil {
					args = append(args, "error", internalCause(v.Error))
				}
				log.Error(ctx, "request failed", args...)
			case v.Error != nil:
				log.Info(ctx, "request rejected", append(args, "error", v.Error.Error())...)
			default:
				log.Info(ctx, "request", args...)
			}
			return nil
		},
	})
}

func internalCause(err error) string {
	var he *echo.HTTPError
	if stderrors.As(err, &he) && he.Internal != nil {
		return he.Internal.Error()
	}
	return err.Error()
}
