package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = echo.HeaderXRequestID

// RequestID propagates an incoming X-Request-ID or generates one, and stores
// it under "request_id" on the echo context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// requestIDFrom reads the id the way the error handler does, from the
// response header, falling back to the context value.
func requestIDFrom(c echo.Context) string {
	if rid := c.Response().Header().Get(RequestIDHeader); rid != "" {
		return rid
	}
	rid, _ := c.Get("request_id").(string)
	return rid
}
