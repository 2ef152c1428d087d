package encounter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/pkg/date"
	"github.com/hms/hms/pkg/money"
)

// DischargeSummary maps to discharge_summary.
type DischargeSummary struct {
	ID                   uuid.UUID                `db:"id" json:"id"`
	PatientID            uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient              *identity.PatientSummary `json:"patient,omitempty"`
	AdmissionDate        date.Date                `db:"admission_date" json:"admissionDate"`
	DischargeDate        date.Date                `db:"discharge_date" json:"dischargeDate"`
	Diagnosis            string                   `db:"diagnosis" json:"diagnosis"`
	TreatmentGiven       string                   `db:"treatment_given" json:"treatmentGiven"`
	ConditionAtDischarge string                   `db:"condition_at_discharge" json:"conditionAtDischarge"`
	MedicationsAdvised   string                   `db:"medications_advised" json:"medicationsAdvised"`
	FollowUp             string                   `db:"follow_up" json:"followUp"`
	DoctorName           string                   `db:"doctor_name" json:"doctorName"`
	CreatedBy            *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt            time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time                `db:"updated_at" json:"updatedAt"`
}

// LengthOfStay is the number of nights between admission and discharge.
func (d *DischargeSummary) LengthOfStay() int {
	return int(d.DischargeDate.Sub(d.AdmissionDate.Time).Hours() / 24)
}

type DischargeRequest struct {
	PatientID            string    `json:"patientId" validate:"required,uuid"`
	AdmissionDate        date.Date `json:"admissionDate" validate:"required"`
	DischargeDate        date.Date `json:"dischargeDate" validate:"required"`
	Diagnosis            string    `json:"diagnosis" validate:"required,max=5000"`
	TreatmentGiven       string    `json:"treatmentGiven" validate:"max=5000"`
	ConditionAtDischarge string    `json:"conditionAtDischarge" validate:"max=50"`
	MedicationsAdvised   string    `json:"medicationsAdvised" validate:"max=5000"`
	FollowUp             string    `json:"followUp" validate:"max=2000"`
	DoctorName           string    `json:"doctorName" validate:"required,max=200"`
}

func (r *DischargeRequest) check() error {
	if r.DischargeDate.Before(r.AdmissionDate) {
		return apierror.Invalid("dischargeDate", "must not precede admissionDate")
	}
	return nil
}

func (r *DischargeRequest) apply(d *DischargeSummary) {
	d.AdmissionDate = r.AdmissionDate
	d.DischargeDate = r.DischargeDate
	d.Diagnosis = strings.TrimSpace(r.Diagnosis)
	d.TreatmentGiven = r.TreatmentGiven
	d.ConditionAtDischarge = strings.TrimSpace(r.ConditionAtDischarge)
	d.MedicationsAdvised = r.MedicationsAdvised
	d.FollowUp = r.FollowUp
	d.DoctorName = strings.TrimSpace(r.DoctorName)
}

// Consultation maps to consultation: one outpatient visit.
type Consultation struct {
	ID             uuid.UUID                `db:"id" json:"id"`
	PatientID      uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient        *identity.PatientSummary `json:"patient,omitempty"`
	DoctorName     string                   `db:"doctor_name" json:"doctorName"`
	Department     string                   `db:"department" json:"department"`
	ChiefComplaint string                   `db:"chief_complaint" json:"chiefComplaint"`
	Diagnosis      string                   `db:"diagnosis" json:"diagnosis"`
	Advice         string                   `db:"advice" json:"advice"`
	Fee            float64                  `db:"fee" json:"fee"`
	ConsultedAt    time.Time                `db:"consulted_at" json:"consultedAt"`
	CreatedBy      *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time                `db:"updated_at" json:"updatedAt"`
}

type ConsultationRequest struct {
	PatientID      string     `json:"patientId" validate:"required,uuid"`
	DoctorName     string     `json:"doctorName" validate:"required,max=200"`
	Department     string     `json:"department" validate:"max=100"`
	ChiefComplaint string     `json:"chiefComplaint" validate:"required,max=5000"`
	Diagnosis      string     `json:"diagnosis" validate:"max=5000"`
	Advice         string     `json:"advice" validate:"max=5000"`
	Fee            float64    `json:"fee" validate:"gte=0"`
	ConsultedAt    *time.Time `json:"consultedAt"`
}

func (r *ConsultationRequest) apply(c *Consultation, now time.Time) {
	c.DoctorName = strings.TrimSpace(r.DoctorName)
	c.Department = strings.TrimSpace(r.Department)
	c.ChiefComplaint = strings.TrimSpace(r.ChiefComplaint)
	c.Diagnosis = r.Diagnosis
	c.Advice = r.Advice
	c.Fee = money.Round(r.Fee)
	c.ConsultedAt = now
	if r.ConsultedAt != nil {
		c.ConsultedAt = *r.ConsultedAt
	}
}
