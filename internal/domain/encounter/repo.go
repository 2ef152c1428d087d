package encounter

import (
	"context"

	"github.com/google/uuid"
)

type DischargeRepository interface {
	Create(ctx context.Context, d *DischargeSummary) error
	GetByID(ctx context.Context, id uuid.UUID) (*DischargeSummary, error)
	Update(ctx context.Context, d *DischargeSummary) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DischargeSummary, int, error)
	Recent(ctx context.Context, n int) ([]*DischargeSummary, error)
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error)
}
