package diagnostics

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/money"
)

// PatientDirectory resolves the patient a lab order is for.
type PatientDirectory interface {
	PatientSummary(ctx context.Context, id uuid.UUID) (*identity.PatientSummary, error)
}

type Service struct {
	tests    LabTestRepository
	patients PatientDirectory
	tx       db.Transactor
	cache    *cache.Cache
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(tests LabTestRepository, patients PatientDirectory, tx db.Transactor, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{
		tests:    tests,
		patients: patients,
		tx:       tx,
		cache:    c,
		log:      log,
		now:      time.Now,
	}
}

// CreateLabTest orders tests for a patient. The order starts pending and its
// total is the sum of the test prices.
func (s *Service) CreateLabTest(ctx context.Context, req CreateLabTestRequest, createdBy *uuid.UUID) (*LabTest, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, apierror.Invalid("patientId", "must be a valid UUID")
	}
	patient, err := s.patients.PatientSummary(ctx, patientID)
	if err != nil {
		return nil, err
	}

	lt := &LabTest{
		PatientID:  patientID,
		Tests:      make([]TestItem, len(req.Tests)),
		Results:    []TestResult{},
		ReferredBy: strings.TrimSpace(req.ReferredBy),
		SampleType: strings.TrimSpace(req.SampleType),
		Notes:      req.Notes,
		Status:     StatusPending,
		CreatedBy:  createdBy,
	}
	prices := make([]float64, len(req.Tests))
	for i, t := range req.Tests {
		lt.Tests[i] = TestItem{Name: strings.TrimSpace(t.Name), Price: money.Round(t.Price)}
		prices[i] = lt.Tests[i].Price
	}
	lt.TotalAmount = money.Sum(prices...)

	if err := s.tests.Create(ctx, lt); err != nil {
		return nil, err
	}
	lt.Patient = patient

	s.cache.Invalidate(ctx, cache.LabTestChanged)
	s.log.Info().Str("lab_test_id", lt.ID.String()).Int("tests", len(lt.Tests)).Msg("lab test ordered")
	return lt, nil
}

func (s *Service) GetLabTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	lt, err := s.tests.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("lab test", id.String())
	}
	return lt, err
}

// UpdateLabTest records results and moves the order along its lifecycle.
// Completing a test stamps completed_at.
func (s *Service) UpdateLabTest(ctx context.Context, id uuid.UUID, req UpdateLabTestRequest) (*LabTest, error) {
	var lt *LabTest
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.tests.GetForUpdate(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return apierror.NotFound("lab test", id.String())
		}
		if err != nil {
			return err
		}

		status := req.Status
		if status == "" {
			status = current.Status
			if status == StatusPending && len(req.Results) > 0 {
				status = StatusInProgress
			}
		}
		if !canMove(current.Status, status) {
			return apierror.Conflict("lab test is %s and cannot move to %s", current.Status, status)
		}

		if req.Results != nil {
			current.Results = req.Results
		}
		if req.Notes != nil {
			current.Notes = *req.Notes
		}
		if status == StatusCompleted && current.CompletedAt == nil {
			now := s.now().UTC()
			current.CompletedAt = &now
		}
		current.Status = status

		if err := s.tests.UpdateResults(ctx, current); err != nil {
			return err
		}
		lt = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.LabTestChanged)
	s.log.Info().Str("lab_test_id", id.String()).Str("status", lt.Status).Msg("lab test updated")
	return lt, nil
}

func (s *Service) RecentLabTests(ctx context.Context, n int) ([]*LabTest, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RecentLabTests, strconv.Itoa(n), func(ctx context.Context) ([]*LabTest, error) {
		return s.tests.Recent(ctx, n)
	})
}

// ListLabTests lists orders, optionally for one patient and one status.
func (s *Service) ListLabTests(ctx context.Context, f LabTestFilter, limit, offset int) ([]*LabTest, int, error) {
	if f.PatientID != nil {
		if _, err := s.patients.PatientSummary(ctx, *f.PatientID); err != nil {
			return nil, 0, err
		}
	}
	return s.tests.List(ctx, f, limit, offset)
}
