package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/db"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, Body) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/prescriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Handler(zerolog.Nop())(err, c)

	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return rec, body
}

func TestHandler_ValidationError(t *testing.T) {
	verr := Invalid("patientId", "is required").Add("medicines", "must contain at least one item")
	rec, body := render(t, fmt.Errorf("create prescription: %w", verr))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if body.Error != "validation_failed" {
		t.Errorf("expected validation_failed, got %q", body.Error)
	}
	if len(body.Fields) != 2 || body.Fields[0].Field != "patientId" {
		t.Errorf("unexpected fields: %+v", body.Fields)
	}
}

func TestHandler_NotFound(t *testing.T) {
	rec, body := render(t, NotFound("patient", "abc"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if body.Error != "not_found" || body.Message != "patient abc not found" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandler_DBNotFound(t *testing.T) {
	rec, body := render(t, fmt.Errorf("get: %w", db.ErrNotFound))
	if rec.Code != http.StatusNotFound || body.Error != "not_found" {
		t.Errorf("expected 404 not_found, got %d %+v", rec.Code, body)
	}
}

func TestHandler_Conflict(t *testing.T) {
	rec, body := render(t, Conflict("username %q is taken", "alice"))
	if rec.Code != http.StatusConflict || body.Error != "conflict" {
		t.Errorf("expected 409 conflict, got %d %+v", rec.Code, body)
	}
}

func TestHandler_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "patient_patient_id_key"}
	rec, body := render(t, fmt.Errorf("insert: %w", pgErr))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if body.Message != "duplicate value for patient_patient_id_key" {
		t.Errorf("unexpected message: %q", body.Message)
	}
}

func TestHandler_EchoHTTPError(t *testing.T) {
	rec, body := render(t, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if body.Error != "unauthorized" || body.Message != "missing authorization header" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandler_EchoHTTPErrorWrapsResponder(t *testing.T) {
	he := echo.NewHTTPError(http.StatusBadRequest, "bad").SetInternal(NotFound("medicine", "x"))
	rec, _ := render(t, he)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected internal responder to win, got %d", rec.Code)
	}
}

func TestHandler_Forbidden(t *testing.T) {
	rec, body := render(t, Forbidden("account disabled"))
	if rec.Code != http.StatusForbidden || body.Error != "forbidden" {
		t.Errorf("expected 403 forbidden, got %d %+v", rec.Code, body)
	}
}

func TestHandler_DeadlineExceeded(t *testing.T) {
	rec, _ := render(t, fmt.Errorf("query: %w", context.DeadlineExceeded))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestHandler_UnknownErrorIsGeneric500(t *testing.T) {
	rec, body := render(t, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Error != "internal_error" {
		t.Errorf("expected internal_error, got %q", body.Error)
	}
	if body.Message == "dial tcp 10.0.0.1:5432: connection refused" {
		t.Error("internal error detail leaked to client")
	}
}

func TestValidationError_OrNil(t *testing.T) {
	v := &ValidationError{}
	if v.OrNil() != nil {
		t.Error("expected nil for empty validation error")
	}
	v.Add("name", "is required")
	if v.OrNil() == nil {
		t.Error("expected non-nil after Add")
	}
}
