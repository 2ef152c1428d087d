package clinical

import (
	"context"

	"github.com/google/uuid"
)

type HistoryRepository interface {
	Create(ctx context.Context, h *MedicalHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalHistory, error)
	Update(ctx context.Context, h *MedicalHistory) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByPatient lists a patient's history, optionally for one status.
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*MedicalHistory, int, error)
}
