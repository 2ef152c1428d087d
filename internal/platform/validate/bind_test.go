package validate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apierror"
)

type nameRequest struct {
	Name string `json:"name" validate:"required"`
}

func newContext(method, target, body string) (echo.Context, *echo.Echo) {
	e := echo.New()
	e.Validator = New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder()), e
}

func TestBind_Valid(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"name":"Asha"}`)
	var req nameRequest
	if err := Bind(c, &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Name != "Asha" {
		t.Errorf("expected Asha, got %q", req.Name)
	}
}

func TestBind_MalformedBody(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"name":`)
	var verr *apierror.ValidationError
	if err := Bind(c, &nameRequest{}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields[0].Field != "body" {
		t.Errorf("expected body field, got %s", verr.Fields[0].Field)
	}
}

func TestBind_RunsValidator(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{}`)
	var verr *apierror.ValidationError
	if err := Bind(c, &nameRequest{}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields[0].Field != "name" {
		t.Errorf("expected name field, got %s", verr.Fields[0].Field)
	}
}

func TestParamUUID(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/", "")
	id := uuid.New()
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	got, err := ParamUUID(c, "id")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	c.SetParamValues("nope")
	if _, err := ParamUUID(c, "id"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}

func TestQueryUUID(t *testing.T) {
	id := uuid.New()
	c, _ := newContext(http.MethodGet, "/?patientId="+id.String(), "")
	got, ok, err := QueryUUID(c, "patientId")
	if err != nil || !ok || got != id {
		t.Fatalf("expected %s, got %s ok=%v err=%v", id, got, ok, err)
	}

	c, _ = newContext(http.MethodGet, "/", "")
	if _, ok, err := QueryUUID(c, "patientId"); ok || err != nil {
		t.Errorf("expected absent, got ok=%v err=%v", ok, err)
	}

	c, _ = newContext(http.MethodGet, "/?patientId=bad", "")
	if _, _, err := QueryUUID(c, "patientId"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}
