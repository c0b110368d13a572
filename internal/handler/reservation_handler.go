package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tablebook/internal/errors"
	"tablebook/internal/model"
	"tablebook/internal/service"
)

// TableNumber accepts a table given as a JSON number or a string. The
// service decides whether the text is a positive integer.
type TableNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TableNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TableNumber(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = TableNumber(n.String())
	}
	return nil
}

// UnmarshalParam implements echo.BindUnmarshaler for form and query values.
func (t *TableNumber) UnmarshalParam(param string) error {
	*t = TableNumber(param)
	return nil
}

// ReservationRequest represents a create or edit request.
type ReservationRequest struct {
	Date  string      `json:"date" form:"date" example:"2024-05-01"`
	Time  string      `json:"time" form:"time" example:"19:00"`
	Table TableNumber `json:"table" form:"table" swaggertype:"integer" example:"3"`
}

func (r ReservationRequest) input() service.ReservationInput {
	return service.ReservationInput{Date: r.Date, Time: r.Time, Table: string(r.Table)}
}

// FreeSlotsResponse lists the open times on a date.
type FreeSlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// ReservationHandler handles reservation endpoints.
type ReservationHandler struct {
	svc service.ReservationService
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(svc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

func reservationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, errors.ErrorResponse{
			Error: "reservation not found",
			Code:  "NOT_FOUND",
		})
	}
	return id, nil
}

// ListOwn godoc
// @Summary List the caller's reservations
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Reservation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) ListOwn(c echo.Context) error {
	reservations, err := h.svc.ListOwn(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, nonNil(reservations))
}

// Create godoc
// @Summary Book a table
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReservationRequest true "Date, time slot and table"
// @Success 201 {object} model.Reservation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	var req ReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	reservation, err := h.svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, reservation)
}

// Update godoc
// @Summary Move a reservation to another date, time or table
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reservation ID"
// @Param request body ReservationRequest true "Date, time slot and table"
// @Success 200 {object} model.Reservation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reservations/{id} [put]
func (h *ReservationHandler) Update(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	var req ReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	reservation, err := h.svc.Edit(c.Request().Context(), id, req.input())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, reservation)
}

// Delete godoc
// @Summary Cancel a reservation
// @Tags reservations
// @Security BearerAuth
// @Param id path string true "Reservation ID"
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListAll godoc
// @Summary List every reservation with its owner
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.OwnedReservation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/reservations [get]
func (h *ReservationHandler) ListAll(c echo.Context) error {
	reservations, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, reservations)
}

// Search godoc
// @Summary Search reservations by owner username
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param username query string false "Case-insensitive username fragment"
// @Success 200 {array} service.OwnedReservation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/reservations/search [get]
func (h *ReservationHandler) Search(c echo.Context) error {
	reservations, err := h.svc.Search(c.Request().Context(), c.QueryParam("username"))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, reservations)
}

// FreeSlots godoc
// @Summary List time slots with no booking on a date
// @Tags slots
// @Produce json
// @Param date query string true "Date as YYYY-MM-DD"
// @Success 200 {object} FreeSlotsResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /slots/free [get]
func (h *ReservationHandler) FreeSlots(c echo.Context) error {
	date := strings.TrimSpace(c.QueryParam("date"))
	free, err := h.svc.FreeSlots(c.Request().Context(), date)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, FreeSlotsResponse{Date: date, Slots: free})
}

func nonNil(rs []model.Reservation) []model.Reservation {
	if rs == nil {
		return []model.Reservation{}
	}
	return rs
}
