package validate

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apierror"
)

// Bind decodes the request into dst and runs the echo validator on it.
// Decoding failures are reported as a validation error on "body".
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code != http.StatusBadRequest {
			return err
		}
		return apierror.Invalid("body", "malformed request body")
	}
	return c.Validate(dst)
}

// ParamUUID parses the named path parameter.
func ParamUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apierror.Invalid(name, "must be a valid UUID")
	}
	return id, nil
}

// QueryUUID parses an optional query parameter; ok is false when it is absent.
func QueryUUID(c echo.Context, name string) (id uuid.UUID, ok bool, err error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, apierror.Invalid(name, "must be a valid UUID")
	}
	return id, true, nil
}
