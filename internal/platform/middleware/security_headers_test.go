package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runSecurityHeaders(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	want := echo.NewHTTPError(http.StatusTeapot)
	err := SecurityHeaders()(func(c echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	rec := runSecurityHeaders(t, httptest.NewRequest(http.MethodGet, "/api/patients", nil))

	for header, value := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS over plain http, got %q", got)
	}
}

func TestSecurityHeaders_HSTSBehindTLSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	rec := runSecurityHeaders(t, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got != hsts {
		t.Errorf("HSTS = %q, want %q", got, hsts)
	}
}
