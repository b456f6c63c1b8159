package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-space-booking/internal/config"
	"github.com/iliyamo/study-space-booking/internal/model"
	"github.com/iliyamo/study-space-booking/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, userID uint64, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, ttl)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + tok.Token
}

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	g.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, subject(c)+"/"+c.Get(CtxRole).(string))
	})
	g.GET("/managers", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, RequireRole(model.RoleSpaceManager, model.RoleAdministrator))
	return e
}

func TestJWTAuth(t *testing.T) {
	e := newServer()
	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", bearer(t, 42, model.RoleStudent, time.Hour), http.StatusOK, "42/Student"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, ""},
		{"expired", bearer(t, 42, model.RoleStudent, -time.Minute), http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", rec.Body, tc.body)
			}
		})
	}
}

func TestJWTAuthRejectsOtherSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other", 1, model.RoleStudent, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	newServer().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := newServer()
	for role, want := range map[string]int{
		model.RoleStudent:       http.StatusForbidden,
		model.RoleSpaceManager:  http.StatusNoContent,
		model.RoleAdministrator: http.StatusNoContent,
		"":                      http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/managers", nil)
		req.Header.Set(echo.HeaderAuthorization, bearer(t, 7, role, time.Hour))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	c.Set(CtxUserID, float64(42))

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.9",
		"user":       "rl:user:42",
		"user_route": "rl:user:42:route:POST /v1/reservations",
	}
	for strategy, want := range cases {
		got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Errorf("%s: key = %q, want %q", strategy, got, want)
		}
	}
}

func TestCaptureWriterTruncates(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = w.Write([]byte("abc"))
	if w.truncated || w.buf.String() != "abc" {
		t.Fatalf("after first write: truncated=%v buf=%q", w.truncated, w.buf.String())
	}
	_, _ = w.Write([]byte("de"))
	if !w.truncated {
		t.Fatal("expected truncation past the limit")
	}
	if rec.Body.String() != "abcde" {
		t.Errorf("client saw %q", rec.Body)
	}
}
