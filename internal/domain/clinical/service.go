package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
)

// PatientDirectory resolves the patient a history entry belongs to.
type PatientDirectory interface {
	PatientSummary(ctx context.Context, id uuid.UUID) (*identity.PatientSummary, error)
}

type Service struct {
	history  HistoryRepository
	patients PatientDirectory
	cache    *cache.Cache
	log      zerolog.Logger
}

func NewService(history HistoryRepository, patients PatientDirectory, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{history: history, patients: patients, cache: c, log: log}
}

func (s *Service) CreateHistory(ctx context.Context, req HistoryRequest, createdBy *uuid.UUID) (*MedicalHistory, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, apierror.Invalid("patientId", "must be a valid UUID")
	}
	patient, err := s.patients.PatientSummary(ctx, patientID)
	if err != nil {
		return nil, err
	}

	h := &MedicalHistory{PatientID: patientID, CreatedBy: createdBy}
	req.apply(h)
	if err := s.history.Create(ctx, h); err != nil {
		return nil, err
	}
	h.Patient = patient

	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	s.log.Info().Str("history_id", h.ID.String()).Str("status", h.Status).Msg("medical history recorded")
	return h, nil
}

func (s *Service) GetHistory(ctx context.Context, id uuid.UUID) (*MedicalHistory, error) {
	h, err := s.history.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("medical history", id.String())
	}
	return h, err
}

func (s *Service) UpdateHistory(ctx context.Context, id uuid.UUID, req HistoryRequest) (*MedicalHistory, error) {
	h := &MedicalHistory{ID: id}
	req.apply(h)
	err := s.history.Update(ctx, h)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("medical history", id.String())
	}
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return h, nil
}

func (s *Service) DeleteHistory(ctx context.Context, id uuid.UUID) error {
	err := s.history.Delete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apierror.NotFound("medical history", id.String())
	}
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return nil
}

func (s *Service) ListHistory(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*MedicalHistory, int, error) {
	switch status {
	case "", StatusActive, StatusResolved, StatusChronic:
	default:
		return nil, 0, apierror.Invalid("status", "must be one of active resolved chronic")
	}
	if _, err := s.patients.PatientSummary(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.history.ListByPatient(ctx, patientID, status, limit, offset)
}
