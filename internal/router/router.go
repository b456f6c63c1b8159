// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/config"
	"github.com/iliyamo/study-space-booking/internal/handler"
	"github.com/iliyamo/study-space-booking/internal/middleware"
)

// Deps carries what the routes need.  Redis may be nil, in which case
// rate limiting and caching are skipped.
type Deps struct {
	Booking   *booking.Service
	JWTSecret string
	DB        handler.Pinger
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       logrus.FieldLogger
}

// RegisterRoutes registers the health check and every /v1 route.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	RegisterSpaces(e, d)
	RegisterReservations(e, d)
}

// RegisterSpaces exposes the space snapshot to any authenticated user.
// Responses are cached in Redis for a short TTL.
func RegisterSpaces(e *echo.Echo, d Deps) {
	h := &handler.SpaceHandler{Booking: d.Booking, Log: d.Log}
	g := e.Group("/v1/spaces", middleware.JWTAuth(d.JWTSecret))
	g.GET("/:id", h.Get, middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
}
