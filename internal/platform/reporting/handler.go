package reporting

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/export"
)

// Handler provides HTTP handlers for the dashboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /stats. Every signed-in role sees the dashboard;
// exports are for admins and doctors.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/stats")
	g.GET("", h.GetStats)
	g.GET("/history", h.GetHistory)
	g.GET("/export", h.ExportHistory, auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetHistory(c echo.Context) error {
	days, err := daysParam(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.History(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) ExportHistory(c echo.Context) error {
	days, err := daysParam(c)
	if err != nil {
		return err
	}
	data, err := h.svc.ExportHistory(c.Request().Context(), days)
	if err != nil {
		return err
	}
	start, _ := h.svc.today()
	return export.Attachment(c, "stats-"+start.Format("20060102")+".xlsx", data)
}

func daysParam(c echo.Context) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return DefaultHistoryDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.Invalid("days", "must be an integer")
	}
	return days, nil
}
