package diagnostics

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
	// Read endpoints – clinicians and the lab
	readGroup := api.Group("", auth.RequireRole(auth.RoleLabTechnician, auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	readGroup.GET("/lab-tests", h.ListLabTests)
	readGroup.GET("/lab-tests/recent", h.RecentLabTests)
	readGroup.GET("/lab-tests/:id", h.GetLabTest)

	// Ordering – clinicians, the lab and the front desk
	orderGroup := api.Group("", auth.RequireRole(auth.RoleLabTechnician, auth.RoleDoctor, auth.RoleReceptionist))
	orderGroup.POST("/lab-tests", h.CreateLabTest)

	// Results – lab only
	resultGroup := api.Group("", auth.RequireRole(auth.RoleLabTechnician))
	resultGroup.PUT("/lab-tests/:id", h.UpdateLabTest)
}

func (h *Handler) CreateLabTest(c echo.Context) error {
	var req CreateLabTestRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	lt, err := h.svc.CreateLabTest(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, lt)
}

func (h *Handler) GetLabTest(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	lt, err := h.svc.GetLabTest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) UpdateLabTest(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateLabTestRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	lt, err := h.svc.UpdateLabTest(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) RecentLabTests(c echo.Context) error {
	tests, err := h.svc.RecentLabTests(c.Request().Context(), pagination.Recent(c))
	if err != nil {
		return err
	}
	if tests == nil {
		tests = []*LabTest{}
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) ListLabTests(c echo.Context) error {
	var f LabTestFilter
	patientID, ok, err := validate.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	if ok {
		f.PatientID = &patientID
	}
	switch status := c.QueryParam("status"); status {
	case "", StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		f.Status = status
	default:
		return apierror.Invalid("status", "must be one of pending in_progress completed cancelled")
	}

	pg := pagination.FromContext(c)
	tests, total, err := h.svc.ListLabTests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, pg))
}
