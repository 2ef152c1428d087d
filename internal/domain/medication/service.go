package medication

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/date"
	"github.com/hms/hms/pkg/money"
)

// DefaultLowStockThreshold is used when a low-stock query names no threshold.
const DefaultLowStockThreshold = 10

// PatientDirectory resolves the patient a prescription is written for.
type PatientDirectory interface {
	PatientSummary(ctx context.Context, id uuid.UUID) (*identity.PatientSummary, error)
}

// Recorder receives dispensing outcomes.
type Recorder interface {
	PrescriptionCreated()
	StockShortfall()
}

type nopRecorder struct{}

func (nopRecorder) PrescriptionCreated() {}
func (nopRecorder) StockShortfall()      {}

// MedicinePage is one cached page of the medicine list.
type MedicinePage struct {
	Items []*Medicine `json:"items"`
	Total int         `json:"total"`
}

type Service struct {
	medicines     MedicineRepository
	prescriptions PrescriptionRepository
	patients      PatientDirectory
	tx            db.Transactor
	seq           seqid.Sequencer
	retrier       *seqid.Retrier
	cache         *cache.Cache
	recorder      Recorder
	tracer        trace.Tracer
	taxRate       float64
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(
	medicines MedicineRepository,
	prescriptions PrescriptionRepository,
	patients PatientDirectory,
	tx db.Transactor,
	seq seqid.Sequencer,
	retrier *seqid.Retrier,
	c *cache.Cache,
	log zerolog.Logger,
) *Service {
	return &Service{
		medicines:     medicines,
		prescriptions: prescriptions,
		patients:      patients,
		tx:            tx,
		seq:           seq,
		retrier:       retrier,
		cache:         c,
		recorder:      nopRecorder{},
		tracer:        otel.Tracer("hms.internal.domain.medication"),
		log:           log,
		now:           time.Now,
	}
}

// WithRecorder routes dispensing outcomes to r.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithTaxRate sets the fraction of the subtotal charged as tax. Zero by default.
func (s *Service) WithTaxRate(rate float64) *Service {
	s.taxRate = rate
	return s
}

// -- Medicine --

func (s *Service) CreateMedicine(ctx context.Context, req MedicineRequest, createdBy *uuid.UUID) (*Medicine, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	m := &Medicine{CreatedBy: createdBy}
	req.apply(m)
	if err := s.medicines.Create(ctx, m); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.MedicineChanged)
	s.log.Info().Str("medicine_id", m.ID.String()).Str("name", m.MedicineName).Msg("medicine added")
	return m, nil
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("medicine", id.String())
	}
	return m, err
}

func (s *Service) UpdateMedicine(ctx context.Context, id uuid.UUID, req MedicineRequest) (*Medicine, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	m := &Medicine{ID: id}
	req.apply(m)
	err := s.medicines.Update(ctx, m)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("medicine", id.String())
	}
	if db.IsCheckViolation(err) {
		return nil, apierror.Invalid("quantity", "must not be negative")
	}
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.MedicineChanged)
	return m, nil
}

// DeleteMedicine removes a medicine that no prescription references.
// Dispensed medicines must be deactivated instead.
func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	err := s.medicines.Delete(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apierror.NotFound("medicine", id.String())
	}
	if db.IsForeignKeyViolation(err) {
		return apierror.Conflict("medicine %s has been dispensed; deactivate it instead", id)
	}
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.MedicineChanged)
	s.log.Info().Str("medicine_id", id.String()).Msg("medicine deleted")
	return nil
}

func (s *Service) ListMedicines(ctx context.Context, f MedicineFilter, limit, offset int) ([]*Medicine, int, error) {
	page, err := cache.GetOrLoad(ctx, s.cache, cache.MedicineList, f.variant(limit, offset), func(ctx context.Context) (MedicinePage, error) {
		items, total, err := s.medicines.List(ctx, f, limit, offset)
		return MedicinePage{Items: items, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// ActiveMedicines lists dispensable stock: active batches with quantity left.
func (s *Service) ActiveMedicines(ctx context.Context) ([]*Medicine, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.ActiveMedicines, "", s.medicines.ListActive)
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]*Medicine, error) {
	if threshold < 0 {
		return nil, apierror.Invalid("threshold", "must be zero or greater")
	}
	return s.medicines.LowStock(ctx, threshold)
}

// -- Prescription --

type dispenseLine struct {
	index      int
	medicineID uuid.UUID
	dosage     string
	quantity   int
	price      float64
}

// CreatePrescription dispenses every line against locked stock and stores the
// bill under the next PH-<year>-<seq> number, all in one transaction. If any
// medicine is short nothing is decremented and a *StockShortfallError lists
// every short medicine.
func (s *Service) CreatePrescription(ctx context.Context, req CreatePrescriptionRequest, createdBy *uuid.UUID) (*Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "medication.CreatePrescription",
		trace.WithAttributes(attribute.Int("prescription.lines", len(req.Medicines))))
	defer span.End()

	patientID, lines, err := parsePrescription(req)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.PatientSummary(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	year := now.Year()
	today := date.New(now)

	var p *Prescription
	err = s.retrier.DoAdvancing(ctx, s.seq, seqid.PrefixBill, year, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			built, err := s.dispense(ctx, lines, today)
			if err != nil {
				return err
			}
			n, err := s.seq.Next(ctx, seqid.PrefixBill, year)
			if err != nil {
				return err
			}
			built.BillNumber = seqid.Yearly(seqid.PrefixBill, year, n)
			built.PatientID = patientID
			built.CreatedBy = createdBy
			if err := s.prescriptions.Create(ctx, built); err != nil {
				return err
			}
			p = built
			return nil
		})
	})
	if err != nil {
		var short *StockShortfallError
		if errors.As(err, &short) {
			s.recorder.StockShortfall()
			s.log.Warn().Str("patient_id", patientID.String()).Int("short_items", len(short.Items)).Msg("prescription rejected: insufficient stock")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "prescription not created")
		return nil, err
	}

	p.Patient = patient
	s.cache.Invalidate(ctx, cache.PrescriptionCreated)
	s.recorder.PrescriptionCreated()
	span.SetAttributes(attribute.String("prescription.bill_number", p.BillNumber))
	s.log.Info().
		Str("bill_number", p.BillNumber).
		Str("patient_id", patientID.String()).
		Float64("total", p.Total).
		Msg("prescription created")
	return p, nil
}

func parsePrescription(req CreatePrescriptionRequest) (uuid.UUID, []dispenseLine, error) {
	verr := &apierror.ValidationError{}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		verr.Add("patientId", "must be a valid UUID")
	}
	switch {
	case len(req.Medicines) == 0:
		verr.Add("medicines", "at least one medicine is required")
	case len(req.Medicines) > maxLines:
		verr.Add("medicines", "at most %d medicines per prescription", maxLines)
	}

	lines := make([]dispenseLine, 0, len(req.Medicines))
	for i, m := range req.Medicines {
		id, err := uuid.Parse(m.MedicineID)
		if err != nil {
			verr.Add(fmt.Sprintf("medicines[%d].medicineId", i), "must be a valid UUID")
			continue
		}
		if m.Quantity <= 0 || m.Quantity > MaxLineQuantity {
			verr.Add(fmt.Sprintf("medicines[%d].quantity", i), "must be between 1 and %d", MaxLineQuantity)
		}
		if m.Price < 0 || m.Price > MaxAmount {
			verr.Add(fmt.Sprintf("medicines[%d].price", i), "must be between 0 and %.2f", MaxAmount)
		}
		lines = append(lines, dispenseLine{
			index:      i,
			medicineID: id,
			dosage:     strings.TrimSpace(m.Dosage),
			quantity:   m.Quantity,
			price:      m.Price,
		})
	}
	if err := verr.OrNil(); err != nil {
		return uuid.Nil, nil, err
	}
	return patientID, lines, nil
}

// dispense locks the referenced medicines, checks every requested total
// against stock before touching anything, then decrements. Must run inside a
// transaction.
func (s *Service) dispense(ctx context.Context, lines []dispenseLine, today date.Date) (*Prescription, error) {
	var order []uuid.UUID
	requested := make(map[uuid.UUID]int)
	firstLine := make(map[uuid.UUID]int)
	for _, l := range lines {
		if _, seen := requested[l.medicineID]; !seen {
			order = append(order, l.medicineID)
			firstLine[l.medicineID] = l.index
		}
		requested[l.medicineID] += l.quantity
	}

	locked, err := s.medicines.LockForDispense(ctx, order)
	if err != nil {
		return nil, err
	}
	stock := make(map[uuid.UUID]*Medicine, len(locked))
	for _, m := range locked {
		stock[m.ID] = m
	}

	verr := &apierror.ValidationError{}
	var short []Shortfall
	for _, id := range order {
		m, ok := stock[id]
		if !ok {
			return nil, apierror.NotFound("medicine", id.String())
		}
		field := fmt.Sprintf("medicines[%d].medicineId", firstLine[id])
		switch {
		case !m.IsActive:
			verr.Add(field, "%s is inactive", m.MedicineName)
		case m.ExpiredOn(today):
			verr.Add(field, "%s batch %s expired on %s", m.MedicineName, m.BatchNumber, m.ExpiryDate)
		case m.Quantity < requested[id]:
			short = append(short, Shortfall{
				MedicineID:   id,
				MedicineName: m.MedicineName,
				Requested:    requested[id],
				Available:    m.Quantity,
			})
		}
	}

	p := &Prescription{Items: make([]PrescriptionItem, len(lines))}
	for i, l := range lines {
		m, ok := stock[l.medicineID]
		if !ok {
			continue
		}
		unit := l.price
		if unit == 0 {
			unit = m.MRP
		}
		unit = money.Round(unit)
		lineTotal := money.Round(unit * float64(l.quantity))
		if lineTotal > MaxAmount {
			verr.Add(fmt.Sprintf("medicines[%d].total", l.index), "line total %.2f exceeds %.2f", lineTotal, MaxAmount)
		}
		p.Items[i] = PrescriptionItem{
			LineNo:       i + 1,
			MedicineID:   m.ID,
			MedicineName: m.MedicineName,
			Dosage:       l.dosage,
			Quantity:     l.quantity,
			UnitPrice:    unit,
			LineTotal:    lineTotal,
		}
		p.Subtotal += lineTotal
	}
	p.Subtotal = money.Round(p.Subtotal)
	p.Tax = money.Round(p.Subtotal * s.taxRate)
	p.Total = money.Round(p.Subtotal + p.Tax)
	if p.Total > MaxAmount {
		verr.Add("total", "prescription total %.2f exceeds %.2f", p.Total, MaxAmount)
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if len(short) > 0 {
		return nil, &StockShortfallError{Items: short}
	}

	for _, id := range order {
		ok, err := s.medicines.Decrement(ctx, id, requested[id])
		if err != nil {
			return nil, err
		}
		if !ok {
			short = append(short, Shortfall{
				MedicineID:   id,
				MedicineName: stock[id].MedicineName,
				Requested:    requested[id],
				Available:    stock[id].Quantity,
			})
		}
	}
	if len(short) > 0 {
		return nil, &StockShortfallError{Items: short}
	}
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apierror.NotFound("prescription", id.String())
	}
	return p, err
}

func (s *Service) RecentPrescriptions(ctx context.Context, n int) ([]*Prescription, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RecentPrescriptions, strconv.Itoa(n), func(ctx context.Context) ([]*Prescription, error) {
		return s.prescriptions.Recent(ctx, n)
	})
}

// SearchByBillNumber matches bill numbers starting with prefix.
func (s *Service) SearchByBillNumber(ctx context.Context, prefix string, limit, offset int) ([]*Prescription, int, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, 0, apierror.Invalid("billNumber", "is required")
	}
	return s.prescriptions.SearchByBillNumber(ctx, strings.ToUpper(prefix), limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	if _, err := s.patients.PatientSummary(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}
