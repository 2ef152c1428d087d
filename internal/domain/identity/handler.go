package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	// Read endpoints – every clinical and front-desk role
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist,
		auth.RolePharmacist, auth.RoleLabTechnician))
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/search", h.SearchPatients)
	readGroup.GET("/patients/recent", h.RecentPatients)
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/registrations", h.SearchRegistrations)
	readGroup.GET("/registrations/search", h.SearchRegistrations)
	readGroup.GET("/registrations/:id", h.GetRegistration)

	// Write endpoints – front desk and clinicians
	writeGroup := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor, auth.RoleNurse))
	writeGroup.POST("/patients", h.CreatePatient)
	writeGroup.POST("/registrations", h.CreateRegistration)
	writeGroup.PUT("/registrations/:id", h.UpdateRegistration)
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.CreatePatient(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) RecentPatients(c echo.Context) error {
	patients, err := h.svc.RecentPatients(c.Request().Context(), pagination.Recent(c))
	if err != nil {
		return err
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return c.JSON(http.StatusOK, patients)
}

// -- Registration Handlers --

func (h *Handler) CreateRegistration(c echo.Context) error {
	var req RegistrationRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	reg, err := h.svc.CreateRegistration(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) GetRegistration(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	reg, err := h.svc.GetRegistration(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) UpdateRegistration(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req RegistrationRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	reg, err := h.svc.UpdateRegistration(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reg)
}

func (h *Handler) SearchRegistrations(c echo.Context) error {
	pg := pagination.FromContext(c)
	regs, total, err := h.svc.SearchRegistrations(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(regs, total, pg))
}
