package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
)

// PatientDirectory resolves the patient an encounter belongs to.
type PatientDirectory interface {
	PatientSummary(ctx context.Context, id uuid.UUID) (*identity.PatientSummary, error)
}

type Service struct {
	discharges    DischargeRepository
	consultations ConsultationRepository
	patients      PatientDirectory
	cache         *cache.Cache
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(discharges DischargeRepository, consultations ConsultationRepository, patients PatientDirectory, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{
		discharges:    discharges,
		consultations: consultations,
		patients:      patients,
		cache:         c,
		log:           log,
		now:           time.Now,
	}
}

func (s *Service) patient(ctx context.Context, raw string) (uuid.UUID, *identity.PatientSummary, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, apierror.Invalid("patientId", "must be a valid UUID")
	}
	p, err := s.patients.PatientSummary(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, p, nil
}

// -- Discharge Summary --

func (s *Service) CreateDischarge(ctx context.Context, req DischargeRequest, createdBy *uuid.UUID) (*DischargeSummary, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	patientID, patient, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	d := &DischargeSummary{PatientID: patientID, CreatedBy: createdBy}
	req.apply(d)
	if err := s.discharges.Create(ctx, d); err != nil {
		return nil, checkViolation(err)
	}
	d.Patient = patient

	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	s.log.Info().Str("discharge_id", d.ID.String()).Int("length_of_stay", d.LengthOfStay()).Msg("discharge summary created")
	return d, nil
}

func (s *Service) GetDischarge(ctx context.Context, id uuid.UUID) (*DischargeSummary, error) {
	d, err := s.discharges.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("discharge summary", id.String())
	}
	return d, err
}

// UpdateDischarge replaces the clinical fields. The patient never changes.
func (s *Service) UpdateDischarge(ctx context.Context, id uuid.UUID, req DischargeRequest) (*DischargeSummary, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	d := &DischargeSummary{ID: id}
	req.apply(d)
	err := s.discharges.Update(ctx, d)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("discharge summary", id.String())
	}
	if err != nil {
		return nil, checkViolation(err)
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return d, nil
}

func (s *Service) DeleteDischarge(ctx context.Context, id uuid.UUID) error {
	err := s.discharges.Delete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apierror.NotFound("discharge summary", id.String())
	}
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return nil
}

func (s *Service) ListDischarges(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DischargeSummary, int, error) {
	if _, err := s.patients.PatientSummary(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.discharges.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) RecentDischarges(ctx context.Context, n int) ([]*DischargeSummary, error) {
	return s.discharges.Recent(ctx, n)
}

// -- Consultation --

func (s *Service) CreateConsultation(ctx context.Context, req ConsultationRequest, createdBy *uuid.UUID) (*Consultation, error) {
	patientID, patient, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	c := &Consultation{PatientID: patientID, CreatedBy: createdBy}
	req.apply(c, s.now().UTC())
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}
	c.Patient = patient

	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	s.log.Info().Str("consultation_id", c.ID.String()).Str("department", c.Department).Msg("consultation recorded")
	return c, nil
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("consultation", id.String())
	}
	return c, err
}

func (s *Service) UpdateConsultation(ctx context.Context, id uuid.UUID, req ConsultationRequest) (*Consultation, error) {
	existing, err := s.GetConsultation(ctx, id)
	if err != nil {
		return nil, err
	}
	c := &Consultation{ID: id}
	req.apply(c, existing.ConsultedAt)
	err = s.consultations.Update(ctx, c)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("consultation", id.String())
	}
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return c, nil
}

func (s *Service) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	err := s.consultations.Delete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apierror.NotFound("consultation", id.String())
	}
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return nil
}

func (s *Service) ListConsultations(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	if _, err := s.patients.PatientSummary(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.consultations.ListByPatient(ctx, patientID, limit, offset)
}

// checkViolation maps the discharge date CHECK constraint to a field error.
func checkViolation(err error) error {
	if db.IsCheckViolation(err) {
		return apierror.Invalid("dischargeDate", "must not precede admissionDate")
	}
	return err
}
