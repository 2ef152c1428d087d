package surgery

import (
	"context"

	"github.com/google/uuid"
)

type CaseSheetRepository interface {
	Create(ctx context.Context, cs *CaseSheet) error
	GetByID(ctx context.Context, id uuid.UUID) (*CaseSheet, error)
	// GetForUpdate locks the row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*CaseSheet, error)
	Update(ctx context.Context, cs *CaseSheet) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseSheet, int, error)
	Recent(ctx context.Context, n int) ([]*CaseSheet, error)
}
