package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/workmatch/api/internal/auth"
)

var secret = []byte("mw-secret")

func run(t *testing.T, req *http.Request, mws ...echo.MiddlewareFunc) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return c, h(c)
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestJWTMiddleware(t *testing.T) {
	tok, err := auth.Issue(secret, "w-1", "worker", time.Now(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "valid header", header: "Bearer " + tok},
		{name: "lowercase scheme", header: "bearer " + tok},
		{name: "query fallback", query: "?token=" + tok},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jobs"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			c, err := run(t, req, JWTMiddleware(secret))
			if tc.status != 0 {
				if got := statusOf(err); got != tc.status {
					t.Fatalf("status = %d (%v), want %d", got, err, tc.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Get("user_id") != "w-1" || c.Get("role") != "worker" {
				t.Errorf("context = %v/%v", c.Get("user_id"), c.Get("role"))
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	tok, _ := auth.Issue(secret, "c-1", "client", time.Now(), time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/bids", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	if _, err := run(t, req, JWTMiddleware(secret), RequireRoles("worker")); statusOf(err) != http.StatusForbidden {
		t.Errorf("client on worker route: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	if _, err := run(t, req, JWTMiddleware(secret), RequireRoles("client", "worker")); err != nil {
		t.Errorf("client on shared route: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := run(t, req, RequireRoles("client")); statusOf(err) != http.StatusForbidden {
		t.Errorf("no role: %v", err)
	}
}
