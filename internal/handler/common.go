// Package handler maps HTTP requests onto the booking service.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/middleware"
)

var errNoIdentity = errors.New("invalid user_id in context")

// getUserID extracts the authenticated user id placed in the context by
// JWTAuth.  Numeric claims decode as float64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoIdentity
}

// getActor pairs the user id with the role claim.
func getActor(c echo.Context) (booking.Actor, error) {
	id, err := getUserID(c)
	if err != nil {
		return booking.Actor{}, err
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return booking.Actor{UserID: id, Role: role}, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// apiError is the body of every error response.
type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func errorJSON(c echo.Context, status int, code, msg string, details ...string) error {
	return c.JSON(status, echo.Map{"error": apiError{Code: code, Message: msg, Details: details}})
}

func unauthorized(c echo.Context) error {
	return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
}

func badRequest(c echo.Context, msg string) error {
	return errorJSON(c, http.StatusBadRequest, string(booking.KindValidation), msg, msg)
}

// statusFor maps a booking error kind to its HTTP status.
func statusFor(k booking.Kind) int {
	switch k {
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict, booking.KindCodeExhausted:
		return http.StatusConflict
	case booking.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err from the booking service.  Unexpected errors
// are logged and reported without their internals.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	var be *booking.Error
	if !errors.As(err, &be) || be.Kind == booking.KindInternal {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
		return errorJSON(c, http.StatusInternalServerError, string(booking.KindInternal), "internal server error")
	}
	status := statusFor(be.Kind)
	switch status {
	case http.StatusServiceUnavailable:
		log.WithError(err).WithField("path", c.Path()).Warn("transient failure")
		c.Response().Header().Set("Retry-After", "1")
		return errorJSON(c, status, string(be.Kind), "the service is busy, please retry")
	case http.StatusInternalServerError:
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
		return errorJSON(c, status, string(be.Kind), "internal server error")
	}
	return errorJSON(c, status, string(be.Kind), be.Message, be.Details...)
}
