package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// ReservationHandler serves the /v1/reservations endpoints.  Identity
// comes from JWTAuth; ownership and role checks on existing reservations
// are made by the booking service.
type ReservationHandler struct {
	Booking *booking.Service
	Log     logrus.FieldLogger
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *booking.Service, log logrus.FieldLogger) *ReservationHandler {
	if svc == nil {
		panic("nil booking service passed to NewReservationHandler")
	}
	return &ReservationHandler{Booking: svc, Log: log}
}

// createRequest keeps space_id raw so that a string or fractional value
// is reported by the validator like any other bad input.
type createRequest struct {
	SpaceID   json.RawMessage `json:"space_id"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Purpose   *string         `json:"purpose"`
}

func (r createRequest) toBooking() booking.Request {
	var id uint64
	if n, err := strconv.ParseUint(string(r.SpaceID), 10, 64); err == nil {
		id = n
	}
	return booking.Request{SpaceID: id, StartTime: r.StartTime, EndTime: r.EndTime, Purpose: r.Purpose}
}

// Create handles POST /v1/reservations.  On success it returns 201 with
// the enriched reservation and its confirmation code.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Booking.Create(c.Request().Context(), userID, body.toBooking())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation":       res,
		"confirmation_code": res.ConfirmationCode,
	})
}

// Cancel handles DELETE /v1/reservations/:id with an optional
// {"reason": "..."} body.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body struct {
		Reason *string `json:"reason"`
	}
	// the body is optional
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequest(c, "invalid request body")
	}
	var reason *model.CancellationReason
	if body.Reason != nil {
		r, ok := model.ParseCancellationReason(*body.Reason)
		if !ok {
			return badRequest(c, "reason must be one of User_Requested, Administrative, Space_Maintenance")
		}
		reason = &r
	}
	res, err := h.Booking.Cancel(c.Request().Context(), id, actor, reason)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Booking.Get(c.Request().Context(), id, actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// List handles GET /v1/reservations?type=&status=&page=&limit= for the
// authenticated user.  Without type both upcoming and past are returned.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	q := booking.ListQuery{
		Scope:  booking.Scope(c.QueryParam("type")),
		Status: model.Status(c.QueryParam("status")),
	}
	if v := c.QueryParam("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil || q.Page < 1 {
			return badRequest(c, "page must be a positive integer")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
	}
	list, err := h.Booking.List(c.Request().Context(), userID, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	out := echo.Map{"statistics": list.Statistics, "pagination": list.Pagination}
	if list.Upcoming != nil {
		out["upcoming"] = list.Upcoming
	}
	if list.Past != nil {
		out["past"] = list.Past
	}
	return c.JSON(http.StatusOK, out)
}
