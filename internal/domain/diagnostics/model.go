package diagnostics

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
)

// Lab test statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// LabTest maps to lab_test. Ordered tests and their results are stored as
// JSONB arrays.
type LabTest struct {
	ID          uuid.UUID                `db:"id" json:"id"`
	PatientID   uuid.UUID                `db:"patient_id" json:"patientId"`
	Patient     *identity.PatientSummary `json:"patient,omitempty"`
	Tests       []TestItem               `db:"tests" json:"tests"`
	Results     []TestResult             `db:"results" json:"results"`
	ReferredBy  string                   `db:"referred_by" json:"referredBy"`
	SampleType  string                   `db:"sample_type" json:"sampleType"`
	Notes       string                   `db:"notes" json:"notes"`
	Status      string                   `db:"status" json:"status"`
	TotalAmount float64                  `db:"total_amount" json:"totalAmount"`
	CreatedBy   *uuid.UUID               `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time                `db:"updated_at" json:"updatedAt"`
	CompletedAt *time.Time               `db:"completed_at" json:"completedAt,omitempty"`
}

type TestItem struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
}

type TestResult struct {
	Name           string `json:"name" validate:"required,max=200"`
	Value          string `json:"value" validate:"max=200"`
	Unit           string `json:"unit,omitempty" validate:"max=50"`
	ReferenceRange string `json:"referenceRange,omitempty" validate:"max=100"`
	Flag           string `json:"flag,omitempty" validate:"omitempty,oneof=normal low high critical"`
}

type CreateLabTestRequest struct {
	PatientID  string     `json:"patientId" validate:"required,uuid"`
	Tests      []TestItem `json:"tests" validate:"required,min=1,max=50,dive"`
	ReferredBy string     `json:"referredBy" validate:"max=200"`
	SampleType string     `json:"sampleType" validate:"max=50"`
	Notes      string     `json:"notes" validate:"max=2000"`
}

// UpdateLabTestRequest records results. An empty Status keeps the current one.
type UpdateLabTestRequest struct {
	Results []TestResult `json:"results" validate:"max=50,dive"`
	Status  string       `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Notes   *string      `json:"notes" validate:"omitempty,max=2000"`
}

// LabTestFilter narrows the lab test list. Zero values match everything.
type LabTestFilter struct {
	PatientID *uuid.UUID
	Status    string
}

// canMove reports whether a test in status from may be set to status to.
// Cancelled is terminal; a completed test may only receive amended results.
func canMove(from, to string) bool {
	switch from {
	case StatusCancelled:
		return to == StatusCancelled
	case StatusCompleted:
		return to == StatusCompleted
	default:
		return true
	}
}
