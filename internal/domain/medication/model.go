package medication

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/pkg/date"
	"github.com/hms/hms/pkg/money"
)

// Medicine maps to the medicine table: one stocked batch.
type Medicine struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	MedicineName    string     `db:"medicine_name" json:"medicineName"`
	BatchNumber     string     `db:"batch_number" json:"batchNumber"`
	Quantity        int        `db:"quantity" json:"quantity"`
	MRP             float64    `db:"mrp" json:"mrp"`
	ManufactureDate *date.Date `db:"manufacture_date" json:"manufactureDate,omitempty"`
	ExpiryDate      *date.Date `db:"expiry_date" json:"expiryDate,omitempty"`
	Category        string     `db:"category" json:"category"`
	IsActive        bool       `db:"is_active" json:"isActive"`
	CreatedBy       *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// ExpiredOn reports whether the batch expiry date lies before day.
func (m *Medicine) ExpiredOn(day date.Date) bool {
	return m.ExpiryDate != nil && m.ExpiryDate.Before(day)
}

type MedicineRequest struct {
	MedicineName    string     `json:"medicineName" validate:"required,max=200"`
	BatchNumber     string     `json:"batchNumber" validate:"max=50"`
	Quantity        int        `json:"quantity" validate:"gte=0,max=10000000"`
	MRP             float64    `json:"mrp" validate:"gte=0,max=9999999999.99"`
	ManufactureDate *date.Date `json:"manufactureDate"`
	ExpiryDate      *date.Date `json:"expiryDate"`
	Category        string     `json:"category" validate:"max=50"`
	IsActive        *bool      `json:"isActive"`
}

func (r *MedicineRequest) check() error {
	if r.Quantity < 0 || r.Quantity > MaxStock {
		return apierror.Invalid("quantity", "must be between 0 and %d", MaxStock)
	}
	if r.MRP < 0 || r.MRP > MaxAmount {
		return apierror.Invalid("mrp", "must be between 0 and %.2f", MaxAmount)
	}
	if r.ManufactureDate != nil && r.ExpiryDate != nil && r.ExpiryDate.Before(*r.ManufactureDate) {
		return apierror.Invalid("expiryDate", "must not precede manufactureDate")
	}
	return nil
}

func (r *MedicineRequest) apply(m *Medicine) {
	m.MedicineName = strings.TrimSpace(r.MedicineName)
	m.BatchNumber = strings.TrimSpace(r.BatchNumber)
	m.Quantity = r.Quantity
	m.MRP = money.Round(r.MRP)
	m.ManufactureDate = r.ManufactureDate
	m.ExpiryDate = r.ExpiryDate
	m.Category = strings.TrimSpace(r.Category)
	m.IsActive = r.IsActive == nil || *r.IsActive
}

// MedicineFilter narrows the medicine list.
type MedicineFilter struct {
	Query    string
	Category string
	Active   *bool
}

func (f MedicineFilter) variant(limit, offset int) string {
	active := "any"
	if f.Active != nil {
		active = fmt.Sprint(*f.Active)
	}
	return fmt.Sprintf("%s|%s|%s|%d|%d", strings.ToLower(f.Query), strings.ToLower(f.Category), active, limit, offset)
}

// Prescription maps to the prescription table plus its items. Immutable once
// created.
type Prescription struct {
	ID         uuid.UUID                `db:"id" json:"id"`
	BillNumber string                   `db:"bill_number" json:"billNumber"`
	PatientID  uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient    *identity.PatientSummary `json:"patient,omitempty"`
	Items      []PrescriptionItem       `json:"items"`
	Subtotal   float64                  `db:"subtotal" json:"subtotal"`
	Tax        float64                  `db:"tax" json:"tax"`
	Total      float64                  `db:"total" json:"total"`
	CreatedBy  *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt  time.Time                `db:"created_at" json:"createdAt"`
}

type PrescriptionItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	LineNo       int       `db:"line_no" json:"lineNo"`
	MedicineID   uuid.UUID `db:"medicine_id" json:"medicineId"`
	MedicineName string    `db:"medicine_name" json:"medicineName"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Quantity     int       `db:"quantity" json:"quantity"`
	UnitPrice    float64   `db:"unit_price" json:"unitPrice"`
	LineTotal    float64   `db:"line_total" json:"lineTotal"`
}

// CreatePrescriptionRequest is the dispensing form. Subtotal, Tax and Total
// are accepted from the client and ignored; the server recomputes them.
type CreatePrescriptionRequest struct {
	PatientID string        `json:"patientId" validate:"required,uuid"`
	Medicines []LineRequest `json:"medicines" validate:"required,min=1,max=100,dive"`
	Subtotal  float64       `json:"subtotal"`
	Tax       float64       `json:"tax"`
	Total     float64       `json:"total"`
}

// Limits keeping quantities inside INTEGER and amounts inside NUMERIC(12,2).
// The validate tags below repeat them.
const (
	MaxLineQuantity = 100000
	MaxStock        = 10000000
	MaxAmount       = 9999999999.99

	maxLines = 100
)

type LineRequest struct {
	MedicineID string  `json:"medicineId" validate:"required,uuid"`
	Name       string  `json:"name" validate:"max=200"`
	Dosage     string  `json:"dosage" validate:"max=200"`
	Quantity   int     `json:"quantity" validate:"gt=0,max=100000"`
	Price      float64 `json:"price" validate:"gte=0,max=9999999999.99"`
	Total      float64 `json:"total"`
}

// Shortfall names one medicine that cannot cover the requested quantity.
type Shortfall struct {
	MedicineID   uuid.UUID `json:"medicineId"`
	MedicineName string    `json:"medicineName"`
	Requested    int       `json:"requested"`
	Available    int       `json:"available"`
}
