package surgery

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – clinical staff
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	readGroup.GET("/case-sheets", h.ListCaseSheets)
	readGroup.GET("/case-sheets/recent", h.RecentCaseSheets)
	readGroup.GET("/case-sheets/:id", h.GetCaseSheet)

	// Write endpoints – doctors
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("/case-sheets", h.CreateCaseSheet)
	writeGroup.PUT("/case-sheets/:id", h.UpdateCaseSheet)
	writeGroup.DELETE("/case-sheets/:id", h.DeleteCaseSheet)
}

func (h *Handler) CreateCaseSheet(c echo.Context) error {
	var req CaseSheetRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	cs, err := h.svc.CreateCaseSheet(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) GetCaseSheet(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	cs, err := h.svc.GetCaseSheet(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) UpdateCaseSheet(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req CaseSheetRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	cs, err := h.svc.UpdateCaseSheet(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) DeleteCaseSheet(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCaseSheet(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCaseSheets(c echo.Context) error {
	patientID, ok, err := validate.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Invalid("patientId", "is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCaseSheets(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) RecentCaseSheets(c echo.Context) error {
	items, err := h.svc.RecentCaseSheets(c.Request().Context(), pagination.Recent(c))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*CaseSheet{}
	}
	return c.JSON(http.StatusOK, items)
}
