package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/pkg/date"
)

// Condition statuses.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusChronic  = "chronic"
)

// MedicalHistory maps to medical_history: one condition in a patient's
// history, with the allergies and medications noted alongside it.
type MedicalHistory struct {
	ID                 uuid.UUID                `db:"id" json:"id"`
	PatientID          uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient            *identity.PatientSummary `json:"patient,omitempty"`
	Condition          string                   `db:"condition" json:"condition"`
	DiagnosedOn        *date.Date               `db:"diagnosed_on" json:"diagnosedOn,omitempty"`
	Status             string                   `db:"status" json:"status"`
	Allergies          string                   `db:"allergies" json:"allergies"`
	CurrentMedications string                   `db:"current_medications" json:"currentMedications"`
	Notes              string                   `db:"notes" json:"notes"`
	CreatedBy          *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt          time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time                `db:"updated_at" json:"updatedAt"`
}

type HistoryRequest struct {
	PatientID          string     `json:"patientId" validate:"required,uuid"`
	Condition          string     `json:"condition" validate:"required,max=200"`
	DiagnosedOn        *date.Date `json:"diagnosedOn"`
	Status             string     `json:"status" validate:"omitempty,oneof=active resolved chronic"`
	Allergies          string     `json:"allergies" validate:"max=2000"`
	CurrentMedications string     `json:"currentMedications" validate:"max=2000"`
	Notes              string     `json:"notes" validate:"max=5000"`
}

func (r *HistoryRequest) apply(h *MedicalHistory) {
	h.Condition = strings.TrimSpace(r.Condition)
	h.DiagnosedOn = r.DiagnosedOn
	h.Status = r.Status
	if h.Status == "" {
		h.Status = StatusActive
	}
	h.Allergies = r.Allergies
	h.CurrentMedications = r.CurrentMedications
	h.Notes = r.Notes
}
