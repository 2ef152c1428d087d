package medication

import (
	"context"

	"github.com/google/uuid"
)

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f MedicineFilter, limit, offset int) ([]*Medicine, int, error)
	ListActive(ctx context.Context) ([]*Medicine, error)
	LowStock(ctx context.Context, threshold int) ([]*Medicine, error)
	All(ctx context.Context) ([]*Medicine, error)

	// LockForDispense returns the rows for ids locked FOR UPDATE in id order.
	// Must run inside a transaction.
	LockForDispense(ctx context.Context, ids []uuid.UUID) ([]*Medicine, error)
	// Decrement subtracts qty only when enough stock remains and reports
	// whether a row was changed.
	Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Recent(ctx context.Context, n int) ([]*Prescription, error)
	SearchByBillNumber(ctx context.Context, prefix string, limit, offset int) ([]*Prescription, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
}
