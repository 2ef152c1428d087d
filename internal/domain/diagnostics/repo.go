package diagnostics

import (
	"context"

	"github.com/google/uuid"
)

type LabTestRepository interface {
	Create(ctx context.Context, lt *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	// GetForUpdate is GetByID with the row locked until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*LabTest, error)
	// UpdateResults stores results, status, notes and completed_at.
	UpdateResults(ctx context.Context, lt *LabTest) error
	List(ctx context.Context, f LabTestFilter, limit, offset int) ([]*LabTest, int, error)
	Recent(ctx context.Context, n int) ([]*LabTest, error)
}
