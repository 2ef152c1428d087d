package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/db"
)

// Handler returns an echo.HTTPErrorHandler rendering every error as a JSON
// Body. Errors without a known mapping are logged and returned as 500.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolve(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}

func resolve(err error) (int, any) {
	var responder Responder
	if errors.As(err, &responder) {
		return responder.StatusCode(), responder.Body()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			if status, body := resolve(he.Internal); status != http.StatusInternalServerError {
				return status, body
			}
		}
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		if he.Code >= http.StatusInternalServerError {
			return he.Code, Body{Error: "internal_error", Message: msg}
		}
		return he.Code, Body{Error: codeFor(he.Code), Message: msg}
	}

	if errors.Is(err, db.ErrNotFound) {
		return http.StatusNotFound, Body{Error: "not_found", Message: "record not found"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, Body{Error: "timeout", Message: "request timed out"}
	}
	if db.IsUniqueViolation(err) {
		return http.StatusConflict, Body{Error: "conflict", Message: "duplicate value for " + db.ConstraintName(err)}
	}

	return http.StatusInternalServerError, Body{Error: "internal_error", Message: "an unexpected error occurred"}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "error"
	}
}
