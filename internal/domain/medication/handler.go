package medication

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/export"
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
	// Read endpoints – prescribers and the pharmacy
	readGroup := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleDoctor, auth.RoleNurse))
	readGroup.GET("/medicines", h.ListMedicines)
	readGroup.GET("/medicines/active", h.ActiveMedicines)
	readGroup.GET("/medicines/low-stock", h.LowStock)
	readGroup.GET("/medicines/export", h.ExportMedicines)
	readGroup.GET("/medicines/:id", h.GetMedicine)
	readGroup.GET("/prescriptions", h.ListByPatient)
	readGroup.GET("/prescriptions/recent", h.RecentPrescriptions)
	readGroup.GET("/prescriptions/search", h.SearchPrescriptions)
	readGroup.GET("/prescriptions/:id", h.GetPrescription)

	// Write endpoints – pharmacy only
	writeGroup := api.Group("", auth.RequireRole(auth.RolePharmacist))
	writeGroup.POST("/medicines", h.CreateMedicine)
	writeGroup.PUT("/medicines/:id", h.UpdateMedicine)
	writeGroup.DELETE("/medicines/:id", h.DeleteMedicine)
	writeGroup.POST("/prescriptions", h.CreatePrescription)
}

// -- Medicine Handlers --

func (h *Handler) CreateMedicine(c echo.Context) error {
	var req MedicineRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	m, err := h.svc.CreateMedicine(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedicine(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedicine(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedicine(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req MedicineRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.UpdateMedicine(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedicine(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedicine(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMedicines(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := MedicineFilter{Query: c.QueryParam("q"), Category: c.QueryParam("category")}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apierror.Invalid("active", "must be true or false")
		}
		f.Active = &active
	}
	meds, total, err := h.svc.ListMedicines(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meds, total, pg))
}

func (h *Handler) ActiveMedicines(c echo.Context) error {
	meds, err := h.svc.ActiveMedicines(c.Request().Context())
	if err != nil {
		return err
	}
	if meds == nil {
		meds = []*Medicine{}
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) LowStock(c echo.Context) error {
	threshold := DefaultLowStockThreshold
	if v := c.QueryParam("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apierror.Invalid("threshold", "must be an integer")
		}
		threshold = n
	}
	meds, err := h.svc.LowStock(c.Request().Context(), threshold)
	if err != nil {
		return err
	}
	if meds == nil {
		meds = []*Medicine{}
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) ExportMedicines(c echo.Context) error {
	ctx := c.Request().Context()
	data, err := h.svc.ExportMedicines(ctx)
	if err != nil {
		return err
	}
	return export.Attachment(c, "medicines-"+h.svc.now().Format("20060102")+".xlsx", data)
}

// -- Prescription Handlers --

func (h *Handler) CreatePrescription(c echo.Context) error {
	var req CreatePrescriptionRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.CreatePrescription(ctx, req, auth.ActorID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := validate.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RecentPrescriptions(c echo.Context) error {
	ps, err := h.svc.RecentPrescriptions(c.Request().Context(), pagination.Recent(c))
	if err != nil {
		return err
	}
	if ps == nil {
		ps = []*Prescription{}
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) SearchPrescriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	ps, total, err := h.svc.SearchByBillNumber(c.Request().Context(), c.QueryParam("billNumber"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(ps, total, pg))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, ok, err := validate.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Invalid("patientId", "is required")
	}
	pg := pagination.FromContext(c)
	ps, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(ps, total, pg))
}
