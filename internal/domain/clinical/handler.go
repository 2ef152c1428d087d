package clinical

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/validate"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts medical history. Doctors and nurses record history;
// only doctors delete it.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/medical-history", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.GET("", h.ListHistory)
	g.GET("/:id", h.GetHistory)
	g.POST("", h.CreateHistory)
	g.PUT("/:id", h.UpdateHistory)
	g.DELETE("/:id", h.DeleteHistory, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) CreateHistory(c echo.Context) error {
	var req HistoryRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	mh, err := h.svc.CreateHistory(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mh)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	mh, err := h.svc.GetHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mh)
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req HistoryRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	mh, err := h.svc.UpdateHistory(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mh)
}

func (h *Handler) DeleteHistory(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteHistory(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListHistory(c echo.Context) error {
	patientID, ok, err := validate.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Invalid("patientId", "is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListHistory(c.Request().Context(), patientID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
