package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
)

type Service struct {
	patients      PatientRepository
	registrations RegistrationRepository
	tx            db.Transactor
	seq           seqid.Sequencer
	retrier       *seqid.Retrier
	cache         *cache.Cache
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(
	patients PatientRepository,
	registrations RegistrationRepository,
	tx db.Transactor,
	seq seqid.Sequencer,
	retrier *seqid.Retrier,
	c *cache.Cache,
	log zerolog.Logger,
) *Service {
	return &Service{
		patients:      patients,
		registrations: registrations,
		tx:            tx,
		seq:           seq,
		retrier:       retrier,
		cache:         c,
		log:           log,
		now:           time.Now,
	}
}

// -- Patient --

// CreatePatient stores a patient under the next PAT-<year>-<seq> identifier.
func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest, createdBy *uuid.UUID) (*Patient, error) {
	year := s.now().Year()
	var p *Patient

	err := s.retrier.DoAdvancing(ctx, s.seq, seqid.PrefixPatient, year, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			n, err := s.seq.Next(ctx, seqid.PrefixPatient, year)
			if err != nil {
				return err
			}
			p = &Patient{
				PatientID: seqid.Yearly(seqid.PrefixPatient, year, n),
				Name:      strings.TrimSpace(req.Name),
				Age:       req.Age,
				Gender:    normalizeGender(req.Gender),
				Contact:   strings.TrimSpace(req.Contact),
				Address:   strings.TrimSpace(req.Address),
				CreatedBy: createdBy,
			}
			return s.patients.Create(ctx, p)
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.PatientCreated)
	s.log.Info().Str("patient_id", p.PatientID).Msg("patient registered")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("patient", id.String())
	}
	return p, err
}

// PatientSummary returns the patient block embedded in clinical records.
func (s *Service) PatientSummary(ctx context.Context, id uuid.UUID) (*PatientSummary, error) {
	p, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Summary(), nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, q, limit, offset)
}

func (s *Service) RecentPatients(ctx context.Context, n int) ([]*Patient, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RecentPatients, strconv.Itoa(n), func(ctx context.Context) ([]*Patient, error) {
		return s.patients.Recent(ctx, n)
	})
}

// -- Registration --

// CreateRegistration stores an intake record under the next
// MRU-<year>-<seq> number.
func (s *Service) CreateRegistration(ctx context.Context, req RegistrationRequest, createdBy *uuid.UUID) (*Registration, error) {
	year := s.now().Year()
	var reg *Registration

	err := s.retrier.DoAdvancing(ctx, s.seq, seqid.PrefixRegistration, year, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			n, err := s.seq.Next(ctx, seqid.PrefixRegistration, year)
			if err != nil {
				return err
			}
			reg = &Registration{MRUNumber: seqid.Yearly(seqid.PrefixRegistration, year, n), CreatedBy: createdBy}
			req.apply(reg)
			return s.registrations.Create(ctx, reg)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("mru_number", reg.MRUNumber).Msg("registration created")
	return reg, nil
}

func (s *Service) GetRegistration(ctx context.Context, id uuid.UUID) (*Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("registration", id.String())
	}
	return reg, err
}

// UpdateRegistration replaces the editable fields; the MRU number never changes.
func (s *Service) UpdateRegistration(ctx context.Context, id uuid.UUID, req RegistrationRequest) (*Registration, error) {
	reg := &Registration{ID: id}
	req.apply(reg)
	err := s.registrations.Update(ctx, reg)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("registration", id.String())
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) SearchRegistrations(ctx context.Context, q string, limit, offset int) ([]*Registration, int, error) {
	return s.registrations.Search(ctx, q, limit, offset)
}

func normalizeGender(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}
