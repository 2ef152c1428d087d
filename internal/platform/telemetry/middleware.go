package telemetry

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Middleware records request metrics and opens a server span per request.
// It must run outside the request logger, which renders handler errors, so
// that the status seen here is the one written to the client.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	tracer := otel.Tracer("hms.internal.platform.telemetry")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			ctx, span := tracer.Start(req.Context(), "HTTP "+req.Method+" "+route)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			if m != nil {
				m.httpInFlight.Inc()
				defer m.httpInFlight.Dec()
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
				span.RecordError(err)
			}
			span.SetAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			m.ObserveRequest(req.Method, route, status, time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if sc, ok := err.(interface{ StatusCode() int }); ok {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
