// Package middleware holds the request filters shared by the booking routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys populated by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// JWTAuth validates the HS256 bearer token issued by the identity service
// and copies its "sub" and "role" claims into the request context under
// CtxUserID and CtxRole.  Expired tokens and tokens without a subject are
// rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, found := strings.CutPrefix(auth, "Bearer ")
			if !found || strings.TrimSpace(raw) == "" {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			}

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tok.Valid {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			}
			if sub, _ := claims.GetSubject(); sub == "" {
				if _, ok := claims["sub"].(float64); !ok {
					return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid claims")
				}
			}

			c.Set(CtxUserID, claims["sub"])
			c.Set(CtxRole, claims["role"])
			return next(c)
		}
	}
}

// deny writes the API error envelope.
func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": msg}})
}
