package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// Search matches q against name, patient_id and contact.
	Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error)
	Recent(ctx context.Context, n int) ([]*Patient, error)
}

type RegistrationRepository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	Update(ctx context.Context, r *Registration) error
	// Search matches q against first/last name, mru_number and phone. An
	// empty q lists everything.
	Search(ctx context.Context, q string, limit, offset int) ([]*Registration, int, error)
}
