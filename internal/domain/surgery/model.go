package surgery

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/pkg/date"
)

// Case sheet statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// CaseSheet maps to surgical_case_sheet. CaseNumber is issued once per
// patient-scoped counter, e.g. CS3F2A-01.
type CaseSheet struct {
	ID              uuid.UUID                `db:"id" json:"id"`
	CaseNumber      string                   `db:"case_number" json:"caseNumber"`
	PatientID       uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient         *identity.PatientSummary `json:"patient,omitempty"`
	ProcedureName   string                   `db:"procedure_name" json:"procedureName"`
	Surgeon         string                   `db:"surgeon" json:"surgeon"`
	Anesthetist     string                   `db:"anesthetist" json:"anesthetist"`
	AnesthesiaType  string                   `db:"anesthesia_type" json:"anesthesiaType"`
	SurgeryDate     date.Date                `db:"surgery_date" json:"surgeryDate"`
	PreOpDiagnosis  string                   `db:"pre_op_diagnosis" json:"preOpDiagnosis"`
	PostOpDiagnosis string                   `db:"post_op_diagnosis" json:"postOpDiagnosis"`
	Findings        string                   `db:"findings" json:"findings"`
	Notes           string                   `db:"notes" json:"notes"`
	Status          string                   `db:"status" json:"status"`
	CreatedBy       *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt       time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time                `db:"updated_at" json:"updatedAt"`
}

type CaseSheetRequest struct {
	PatientID       string    `json:"patientId" validate:"required,uuid"`
	ProcedureName   string    `json:"procedureName" validate:"required,max=200"`
	Surgeon         string    `json:"surgeon" validate:"required,max=200"`
	Anesthetist     string    `json:"anesthetist" validate:"max=200"`
	AnesthesiaType  string    `json:"anesthesiaType" validate:"max=50"`
	SurgeryDate     date.Date `json:"surgeryDate" validate:"required"`
	PreOpDiagnosis  string    `json:"preOpDiagnosis"`
	PostOpDiagnosis string    `json:"postOpDiagnosis"`
	Findings        string    `json:"findings"`
	Notes           string    `json:"notes"`
	Status          string    `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
}

func (r *CaseSheetRequest) apply(cs *CaseSheet) {
	cs.ProcedureName = strings.TrimSpace(r.ProcedureName)
	cs.Surgeon = strings.TrimSpace(r.Surgeon)
	cs.Anesthetist = r.Anesthetist
	cs.AnesthesiaType = r.AnesthesiaType
	cs.SurgeryDate = r.SurgeryDate
	cs.PreOpDiagnosis = r.PreOpDiagnosis
	cs.PostOpDiagnosis = r.PostOpDiagnosis
	cs.Findings = r.Findings
	cs.Notes = r.Notes
	if r.Status != "" {
		cs.Status = r.Status
	}
	if cs.Status == "" {
		cs.Status = StatusScheduled
	}
}

// canMove reports whether a case sheet may go from one status to another.
// A cancelled case is closed.
func canMove(from, to string) bool {
	return from != StatusCancelled || to == StatusCancelled
}
