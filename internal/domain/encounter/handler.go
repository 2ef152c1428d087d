package encounter

import (
	"net/http"

	"github.com/google/uuid"
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
	// Read endpoints – clinicians and front desk
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	readGroup.GET("/discharge-summaries", h.ListDischarges)
	readGroup.GET("/discharge-summaries/recent", h.RecentDischarges)
	readGroup.GET("/discharge-summaries/:id", h.GetDischarge)
	readGroup.GET("/consultations", h.ListConsultations)
	readGroup.GET("/consultations/:id", h.GetConsultation)

	// Write endpoints – doctors
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("/discharge-summaries", h.CreateDischarge)
	writeGroup.PUT("/discharge-summaries/:id", h.UpdateDischarge)
	writeGroup.DELETE("/discharge-summaries/:id", h.DeleteDischarge)
	writeGroup.POST("/consultations", h.CreateConsultation)
	writeGroup.PUT("/consultations/:id", h.UpdateConsultation)
	writeGroup.DELETE("/consultations/:id", h.DeleteConsultation)
}

func requiredPatient(c echo.Context) (pagination.Params, uuid.UUID, error) {
	id, ok, err := validate.QueryUUID(c, "patientId")
	if err != nil {
		return pagination.Params{}, id, err
	}
	if !ok {
		return pagination.Params{}, id, apierror.Invalid("patientId", "is required")
	}
	return pagination.FromContext(c), id, nil
}

// -- Discharge Summary Handlers --

func (h *Handler) CreateDischarge(c echo.Context) error {
	var req DischargeRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.CreateDischarge(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDischarge(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDischarge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDischarge(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req DischargeRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.UpdateDischarge(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDischarge(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDischarge(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDischarges(c echo.Context) error {
	pg, patientID, err := requiredPatient(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListDischarges(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) RecentDischarges(c echo.Context) error {
	items, err := h.svc.RecentDischarges(c.Request().Context(), pagination.Recent(c))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*DischargeSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Consultation Handlers --

func (h *Handler) CreateConsultation(c echo.Context) error {
	var req ConsultationRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	con, err := h.svc.CreateConsultation(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, con)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	con, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req ConsultationRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	con, err := h.svc.UpdateConsultation(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, con)
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteConsultation(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	pg, patientID, err := requiredPatient(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListConsultations(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
