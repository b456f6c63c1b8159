package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-space-booking/internal/handler"
	"github.com/iliyamo/study-space-booking/internal/middleware"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// RegisterReservations registers /v1/reservations.  Only students create
// reservations; students act on their own, while space managers and
// administrators may read or cancel any reservation.  Writes pass through
// the per-user token bucket.
func RegisterReservations(e *echo.Echo, d Deps) {
	h := handler.NewReservationHandler(d.Booking, d.Log)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleSpaceManager, model.RoleAdministrator),
	)
	g.POST("", h.Create, middleware.RequireRole(model.RoleStudent), limit)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel, limit)
}
