package handler

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tablebook/internal/errors"
	"tablebook/internal/service"
)

// AvatarField is the multipart field carrying an avatar upload.
const AvatarField = "profilePicture"

// UserHandler bundles profile, avatar and user administration handlers.
type UserHandler struct {
	svc       service.UserService
	maxAvatar int64
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, maxAvatar int64) *UserHandler {
	return &UserHandler{svc: svc, maxAvatar: maxAvatar}
}

func invalidUpload(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: msg,
		Code:  "INVALID_UPLOAD",
	})
}

// Me godoc
// @Summary Get the caller's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	profile, err := h.svc.Profile(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// UploadAvatar godoc
// @Summary Replace the caller's avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param profilePicture formData file true "Image file"
// @Success 200 {object} service.Profile
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /me/avatar [post]
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	fh, err := c.FormFile(AvatarField)
	if err != nil {
		return invalidUpload("missing file field " + AvatarField)
	}
	if fh.Size > h.maxAvatar {
		return invalidUpload("file is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return invalidUpload("unreadable upload")
	}
	defer f.Close()

	// Read one byte past the limit so oversize bodies are still rejected.
	data, err := io.ReadAll(io.LimitReader(f, h.maxAvatar+1))
	if err != nil {
		return invalidUpload("unreadable upload")
	}

	profile, err := h.svc.SetAvatar(c.Request().Context(), data)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// DeleteAvatar godoc
// @Summary Remove the caller's avatar
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /me/avatar [delete]
func (h *UserHandler) DeleteAvatar(c echo.Context) error {
	profile, err := h.svc.ClearAvatar(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, users)
}

// Promote godoc
// @Summary Grant the admin role to a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/users/{id}/promote [post]
func (h *UserHandler) Promote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, errors.ErrorResponse{
			Error: "user not found",
			Code:  "NOT_FOUND",
		})
	}

	user, err := h.svc.Promote(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, user)
}
