package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
)

func ok(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func newCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// logLines decodes the JSON lines zerolog wrote to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	var seen string
	h := RequestID()(func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return ok(c)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == "" {
		t.Fatal("expected request_id to be generated")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected header %q, got %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "my-custom-id")
	if err := RequestID()(ok)(c); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", got)
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	RequestID()(ok)(c)
	if got := rec.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("oversized id was kept: %d bytes", len(got))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newCtx(http.MethodGet, "/api/v1/admin/dashboard")
	c.Set("request_id", "req-1")
	h := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		claims := &auth.Claims{Roles: []string{auth.RoleAdmin}}
		claims.Subject = "admin"
		c.SetRequest(c.Request().WithContext(auth.WithClaims(c.Request().Context(), claims)))
		return ok(c)
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}

	lines := logLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	l := lines[0]
	if l["level"] != "info" || l["request_id"] != "req-1" || l["user_id"] != "admin" || l["status"] != float64(200) {
		t.Errorf("unexpected log line %v", l)
	}
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		err   error
		level string
	}{
		{echo.NewHTTPError(http.StatusNotFound, "nope"), "warn"},
		{echo.NewHTTPError(http.StatusServiceUnavailable, "save failed, please retry"), "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		c, _ := newCtx(http.MethodGet, "/")
		err := Logger(zerolog.New(&buf))(func(echo.Context) error { return tt.err })(c)
		if err != tt.err {
			t.Errorf("error not passed through: %v", err)
		}
		if l := logLines(t, &buf)[0]; l["level"] != tt.level {
			t.Errorf("expected level %s, got %v", tt.level, l["level"])
		}
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newCtx(http.MethodGet, "/panic")
	err := Recovery(zerolog.New(&buf))(func(echo.Context) error { panic("test panic") })(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if l := logLines(t, &buf)[0]; l["panic"] != "test panic" || l["path"] != "/panic" {
		t.Errorf("unexpected log line %v", l)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/ok")
	if err := Recovery(zerolog.Nop())(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/api/v1/admin/entries")
	if err := SecurityHeaders(false)(ok)(c); err != nil {
		t.Fatal(err)
	}
	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must be off when disabled")
	}

	c, rec = newCtx(http.MethodGet, "/")
	SecurityHeaders(true)(ok)(c)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header")
	}
}
