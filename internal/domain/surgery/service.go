package surgery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
)

// PatientDirectory resolves the patient a case sheet belongs to.
type PatientDirectory interface {
	PatientSummary(ctx context.Context, id uuid.UUID) (*identity.PatientSummary, error)
}

type Service struct {
	sheets   CaseSheetRepository
	patients PatientDirectory
	tx       db.Transactor
	seq      seqid.Sequencer
	retrier  *seqid.Retrier
	cache    *cache.Cache
	log      zerolog.Logger
}

func NewService(
	sheets CaseSheetRepository,
	patients PatientDirectory,
	tx db.Transactor,
	seq seqid.Sequencer,
	retrier *seqid.Retrier,
	c *cache.Cache,
	log zerolog.Logger,
) *Service {
	return &Service{
		sheets:   sheets,
		patients: patients,
		tx:       tx,
		seq:      seq,
		retrier:  retrier,
		cache:    c,
		log:      log,
	}
}

// CreateCaseSheet stores a case sheet under the next case number of the
// patient. Number allocation and insert share one transaction.
func (s *Service) CreateCaseSheet(ctx context.Context, req CaseSheetRequest, createdBy *uuid.UUID) (*CaseSheet, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, apierror.Invalid("patientId", "must be a valid UUID")
	}
	patient, err := s.patients.PatientSummary(ctx, patientID)
	if err != nil {
		return nil, err
	}

	scope := seqid.PatientScope(seqid.PrefixCaseSheet, patientID)
	var cs *CaseSheet
	err = s.retrier.DoAdvancing(ctx, s.seq, scope, 0, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			n, err := s.seq.Next(ctx, scope, 0)
			if err != nil {
				return err
			}
			built := &CaseSheet{
				CaseNumber: seqid.PatientScoped(seqid.PrefixCaseSheet, patientID, n),
				PatientID:  patientID,
				CreatedBy:  createdBy,
			}
			req.apply(built)
			if err := s.sheets.Create(ctx, built); err != nil {
				return err
			}
			cs = built
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	cs.Patient = patient

	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	s.log.Info().
		Str("case_number", cs.CaseNumber).
		Str("patient_id", patientID.String()).
		Msg("surgical case sheet created")
	return cs, nil
}

func (s *Service) GetCaseSheet(ctx context.Context, id uuid.UUID) (*CaseSheet, error) {
	cs, err := s.sheets.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("case sheet", id.String())
	}
	return cs, err
}

// UpdateCaseSheet rewrites the clinical fields. The case number and patient
// never change; a cancelled case only accepts edits that keep it cancelled.
func (s *Service) UpdateCaseSheet(ctx context.Context, id uuid.UUID, req CaseSheetRequest) (*CaseSheet, error) {
	var cs *CaseSheet
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.sheets.GetForUpdate(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return apierror.NotFound("case sheet", id.String())
		}
		if err != nil {
			return err
		}
		from := existing.Status
		req.apply(existing)
		if !canMove(from, existing.Status) {
			return apierror.Conflict("case sheet %s is %s and cannot move to %s", existing.CaseNumber, from, existing.Status)
		}
		if err := s.sheets.Update(ctx, existing); err != nil {
			return err
		}
		cs = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return cs, nil
}

func (s *Service) DeleteCaseSheet(ctx context.Context, id uuid.UUID) error {
	err := s.sheets.Delete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apierror.NotFound("case sheet", id.String())
	}
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.ClinicalRecordChanged)
	return nil
}

func (s *Service) ListCaseSheets(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseSheet, int, error) {
	if _, err := s.patients.PatientSummary(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.sheets.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) RecentCaseSheets(ctx context.Context, n int) ([]*CaseSheet, error) {
	return s.sheets.Recent(ctx, n)
}
