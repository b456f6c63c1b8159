package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// SpaceHandler exposes the read-only space snapshot used when booking.
type SpaceHandler struct {
	Booking *booking.Service
	Log     logrus.FieldLogger
}

// hoursJSON renders a window as {"start","end"}, or null when unset.
func hoursJSON(w model.HoursWindow) any {
	if !w.Configured {
		return nil
	}
	return echo.Map{"start": w.Open, "end": w.Close}
}

// Get handles GET /v1/spaces/:id.
func (h *SpaceHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid space id")
	}
	sp, err := h.Booking.Space(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	tz := "UTC"
	if loc := h.Booking.Policy().Location; loc != nil {
		tz = loc.String()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":       sp.ID,
		"name":     sp.Name,
		"status":   sp.Status,
		"bookable": sp.Bookable(),
		"operating_hours": echo.Map{
			"weekday": hoursJSON(sp.OperatingHours.Weekday),
			"weekend": hoursJSON(sp.OperatingHours.Weekend),
		},
		"time_zone": tz,
	})
}
