package medication

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/date"
)

// -- Mock Pharmacy Store --

// pharmacyStore backs both repositories. InTx serialises units of work and
// restores stock, bills and the bill counter when fn fails, like a rolled
// back transaction.
type pharmacyStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	meds   map[uuid.UUID]*Medicine
	rx     map[uuid.UUID]*Prescription
	rxSeq  []uuid.UUID
	bills  map[string]bool
	seq    *seqid.Memory
	year   int
	recent int

	deleteErr error
}

func newPharmacyStore(seq *seqid.Memory, year int) *pharmacyStore {
	return &pharmacyStore{
		meds:  make(map[uuid.UUID]*Medicine),
		rx:    make(map[uuid.UUID]*Prescription),
		bills: make(map[string]bool),
		seq:   seq,
		year:  year,
	}
}

type storeSnapshot struct {
	qty   map[uuid.UUID]int
	rxSeq []uuid.UUID
	bills map[string]bool
	last  int
}

func (s *pharmacyStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *pharmacyStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		qty:   make(map[uuid.UUID]int, len(s.meds)),
		rxSeq: append([]uuid.UUID(nil), s.rxSeq...),
		bills: make(map[string]bool, len(s.bills)),
		last:  s.seq.Last(seqid.PrefixBill, s.year),
	}
	for id, m := range s.meds {
		snap.qty[id] = m.Quantity
	}
	for b := range s.bills {
		snap.bills[b] = true
	}
	return snap
}

func (s *pharmacyStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range snap.qty {
		s.meds[id].Quantity = q
	}
	keep := make(map[uuid.UUID]bool, len(snap.rxSeq))
	for _, id := range snap.rxSeq {
		keep[id] = true
	}
	for id := range s.rx {
		if !keep[id] {
			delete(s.rx, id)
		}
	}
	s.rxSeq = snap.rxSeq
	s.bills = snap.bills
	s.seq.Set(seqid.PrefixBill, s.year, snap.last)
}

func (s *pharmacyStore) addMedicine(name string, qty int, mrp float64) *Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &Medicine{ID: uuid.New(), MedicineName: name, BatchNumber: "B-" + name, Quantity: qty, MRP: mrp, IsActive: true}
	s.meds[m.ID] = m
	return m
}

func (s *pharmacyStore) quantity(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meds[id].Quantity
}

func (s *pharmacyStore) prescriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

type medicineStore struct{ *pharmacyStore }

func (s medicineStore) Create(_ context.Context, m *Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.meds[m.ID] = m
	return nil
}

func (s medicineStore) GetByID(_ context.Context, id uuid.UUID) (*Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s medicineStore) Update(_ context.Context, m *Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.meds[m.ID]
	if !ok {
		return db.ErrNotFound
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now()
	s.meds[m.ID] = m
	return nil
}

func (s medicineStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.meds[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.meds, id)
	return nil
}

func (s medicineStore) List(_ context.Context, f MedicineFilter, limit, offset int) ([]*Medicine, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Medicine
	for _, m := range s.meds {
		if f.Active != nil && m.IsActive != *f.Active {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MedicineName < result[j].MedicineName })
	return result, len(result), nil
}

func (s medicineStore) ListActive(_ context.Context) ([]*Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Medicine
	for _, m := range s.meds {
		if m.IsActive && m.Quantity > 0 {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MedicineName < result[j].MedicineName })
	return result, nil
}

func (s medicineStore) LowStock(_ context.Context, threshold int) ([]*Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Medicine
	for _, m := range s.meds {
		if m.IsActive && m.Quantity <= threshold {
			result = append(result, m)
		}
	}
	return result, nil
}

func (s medicineStore) All(ctx context.Context) ([]*Medicine, error) {
	all, _, err := s.List(ctx, MedicineFilter{}, 1000, 0)
	return all, err
}

func (s medicineStore) LockForDispense(_ context.Context, ids []uuid.UUID) ([]*Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Medicine
	for _, id := range ids {
		if m, ok := s.meds[id]; ok {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s medicineStore) Decrement(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[id]
	if !ok || m.Quantity < qty {
		return false, nil
	}
	m.Quantity -= qty
	return true, nil
}

type prescriptionStore struct{ *pharmacyStore }

func (s prescriptionStore) Create(_ context.Context, p *Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bills[p.BillNumber] {
		return fmt.Errorf("prescription create: %w", &pgconn.PgError{Code: "23505", ConstraintName: "prescription_bill_number_key"})
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
	}
	s.bills[p.BillNumber] = true
	s.rx[p.ID] = p
	s.rxSeq = append(s.rxSeq, p.ID)
	return nil
}

func (s prescriptionStore) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rx[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (s prescriptionStore) Recent(_ context.Context, n int) ([]*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent++
	var result []*Prescription
	for i := len(s.rxSeq) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.rx[s.rxSeq[i]])
	}
	return result, nil
}

func (s prescriptionStore) SearchByBillNumber(_ context.Context, prefix string, limit, offset int) ([]*Prescription, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Prescription
	for _, id := range s.rxSeq {
		p := s.rx[id]
		if len(p.BillNumber) >= len(prefix) && p.BillNumber[:len(prefix)] == prefix {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (s prescriptionStore) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Prescription
	for _, id := range s.rxSeq {
		if p := s.rx[id]; p.PatientID == patientID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

// -- Mock Patient Directory --

type mockPatients map[uuid.UUID]*identity.PatientSummary

func (m mockPatients) PatientSummary(_ context.Context, id uuid.UUID) (*identity.PatientSummary, error) {
	p, ok := m[id]
	if !ok {
		return nil, apierror.NotFound("patient", id.String())
	}
	return p, nil
}

type countingRecorder struct {
	mu         sync.Mutex
	created    int
	shortfalls int
}

func (r *countingRecorder) PrescriptionCreated() { r.mu.Lock(); r.created++; r.mu.Unlock() }
func (r *countingRecorder) StockShortfall()      { r.mu.Lock(); r.shortfalls++; r.mu.Unlock() }

type testEnv struct {
	svc      *Service
	store    *pharmacyStore
	seq      *seqid.Memory
	patient  *identity.PatientSummary
	recorder *countingRecorder
}

func newTestEnv() *testEnv {
	seq := seqid.NewMemory()
	store := newPharmacyStore(seq, 2025)
	patient := &identity.PatientSummary{ID: uuid.New(), PatientID: "PAT-2025-001", Name: "Asha Rao", Age: 42, Gender: "female"}
	rec := &countingRecorder{}

	svc := NewService(medicineStore{store}, prescriptionStore{store}, mockPatients{patient.ID: patient}, store, seq,
		seqid.NewRetrier(zerolog.Nop(), nil),
		cache.New(cache.NewMemoryStore(), time.Minute, zerolog.Nop()),
		zerolog.Nop()).WithRecorder(rec)
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

	return &testEnv{svc: svc, store: store, seq: seq, patient: patient, recorder: rec}
}

func (env *testEnv) request(lines ...LineRequest) CreatePrescriptionRequest {
	return CreatePrescriptionRequest{PatientID: env.patient.ID.String(), Medicines: lines}
}

func line(m *Medicine, qty int, price float64) LineRequest {
	return LineRequest{MedicineID: m.ID.String(), Name: m.MedicineName, Dosage: "1-0-1", Quantity: qty, Price: price}
}

// -- Prescription Tests --

func TestService_CreatePrescriptionDecrementsStock(t *testing.T) {
	env := newTestEnv()
	para := env.store.addMedicine("Paracetamol", 10, 2.5)
	amox := env.store.addMedicine("Amoxicillin", 20, 12)

	p, err := env.svc.CreatePrescription(context.Background(),
		env.request(line(para, 3, 0), line(amox, 2, 10), line(para, 2, 0)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.BillNumber != "PH-2025-001" {
		t.Errorf("expected PH-2025-001, got %s", p.BillNumber)
	}
	if got := env.store.quantity(para.ID); got != 5 {
		t.Errorf("expected paracetamol 5, got %d", got)
	}
	if got := env.store.quantity(amox.ID); got != 18 {
		t.Errorf("expected amoxicillin 18, got %d", got)
	}
	if len(p.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(p.Items))
	}
	if p.Items[0].UnitPrice != 2.5 || p.Items[0].LineTotal != 7.5 {
		t.Errorf("expected MRP fallback on line 1, got %+v", p.Items[0])
	}
	if p.Items[1].UnitPrice != 10 || p.Items[1].LineTotal != 20 {
		t.Errorf("expected client price on line 2, got %+v", p.Items[1])
	}
	if p.Subtotal != 32.5 || p.Tax != 0 || p.Total != 32.5 {
		t.Errorf("expected 32.5/0/32.5, got %v/%v/%v", p.Subtotal, p.Tax, p.Total)
	}
	if p.Patient == nil || p.Patient.Name != "Asha Rao" {
		t.Errorf("expected patient summary, got %+v", p.Patient)
	}
	if env.store.prescriptionCount() != 1 {
		t.Errorf("expected exactly one prescription, got %d", env.store.prescriptionCount())
	}
	if env.recorder.created != 1 {
		t.Errorf("expected recorder to count one prescription, got %d", env.recorder.created)
	}
}

func TestService_CreatePrescriptionIgnoresClientTotals(t *testing.T) {
	env := newTestEnv()
	para := env.store.addMedicine("Paracetamol", 10, 2.5)

	req := env.request(line(para, 2, 0))
	req.Medicines[0].Total = 999
	req.Subtotal, req.Tax, req.Total = 1, 1, 1

	p, err := env.svc.CreatePrescription(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Items[0].LineTotal != 5 || p.Total != 5 {
		t.Errorf("expected server totals of 5, got line %v total %v", p.Items[0].LineTotal, p.Total)
	}
}

func TestService_CreatePrescriptionAppliesTaxRate(t *testing.T) {
	env := newTestEnv()
	env.svc.WithTaxRate(0.05)
	med := env.store.addMedicine("Cetirizine", 50, 10)

	p, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 10, 0)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Subtotal != 100 || p.Tax != 5 || p.Total != 105 {
		t.Errorf("expected 100/5/105, got %v/%v/%v", p.Subtotal, p.Tax, p.Total)
	}
}

func TestService_BillNumbersAreSequential(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 100, 2)

	for _, want := range []string{"PH-2025-001", "PH-2025-002"} {
		p, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 1, 0)), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.BillNumber != want {
			t.Errorf("expected %s, got %s", want, p.BillNumber)
		}
	}
}

func TestService_ShortfallListsEveryShortMedicine(t *testing.T) {
	env := newTestEnv()
	para := env.store.addMedicine("Paracetamol", 10, 2)
	amox := env.store.addMedicine("Amoxicillin", 20, 5)
	ors := env.store.addMedicine("ORS", 1, 1)

	_, err := env.svc.CreatePrescription(context.Background(),
		env.request(line(para, 6, 0), line(amox, 5, 0), line(para, 6, 0), line(ors, 3, 0)), nil)

	var short *StockShortfallError
	if !errors.As(err, &short) {
		t.Fatalf("expected StockShortfallError, got %v", err)
	}
	if len(short.Items) != 2 {
		t.Fatalf("expected 2 short medicines, got %+v", short.Items)
	}
	if short.Items[0].MedicineID != para.ID || short.Items[0].Requested != 12 || short.Items[0].Available != 10 {
		t.Errorf("expected summed paracetamol shortfall 12/10, got %+v", short.Items[0])
	}
	if short.Items[1].MedicineName != "ORS" || short.Items[1].Requested != 3 || short.Items[1].Available != 1 {
		t.Errorf("expected ORS shortfall 3/1, got %+v", short.Items[1])
	}
	if short.StatusCode() != 409 {
		t.Errorf("expected 409, got %d", short.StatusCode())
	}

	for id, want := range map[uuid.UUID]int{para.ID: 10, amox.ID: 20, ors.ID: 1} {
		if got := env.store.quantity(id); got != want {
			t.Errorf("stock of %s changed: %d, want %d", id, got, want)
		}
	}
	if env.store.prescriptionCount() != 0 {
		t.Error("expected no prescription")
	}
	if env.seq.Last(seqid.PrefixBill, 2025) != 0 {
		t.Error("expected bill counter to be untouched")
	}
	if env.recorder.shortfalls != 1 {
		t.Errorf("expected one shortfall recorded, got %d", env.recorder.shortfalls)
	}
}

func TestService_ConcurrentOverdrawOnlyOneSucceeds(t *testing.T) {
	env := newTestEnv()
	para := env.store.addMedicine("Paracetamol", 10, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.CreatePrescription(context.Background(), env.request(line(para, 6, 0)), nil)
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		var short *StockShortfallError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &short):
			failed++
			it := short.Items[0]
			if it.MedicineName != "Paracetamol" || it.Requested != 6 || it.Available != 4 {
				t.Errorf("expected Paracetamol 6/4, got %+v", it)
			}
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("expected one success and one shortfall, got %d/%d", ok, failed)
	}
	if got := env.store.quantity(para.ID); got != 4 {
		t.Errorf("expected 4 left, got %d", got)
	}
}

func TestService_ConcurrentPrescriptionsGetDistinctBills(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 100, 2)

	const n = 20
	bills := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 1, 0)), nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			bills[i] = p.BillNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, b := range bills {
		if b == "" || seen[b] {
			t.Fatalf("duplicate or missing bill number %q in %v", b, bills)
		}
		seen[b] = true
	}
	if got := env.store.quantity(med.ID); got != 100-n {
		t.Errorf("expected %d left, got %d", 100-n, got)
	}
}

func TestService_IdenticalResubmissionDispensesTwice(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	req := env.request(line(med, 3, 0))

	first, err := env.svc.CreatePrescription(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := env.svc.CreatePrescription(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.BillNumber == second.BillNumber {
		t.Errorf("expected distinct bills, got %s twice", first.BillNumber)
	}
	if got := env.store.quantity(med.ID); got != 4 {
		t.Errorf("expected 4 left, got %d", got)
	}
}

func TestService_BillCollisionRetriesOnce(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	env.store.bills["PH-2025-001"] = true

	p, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 2, 0)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BillNumber != "PH-2025-002" {
		t.Errorf("expected PH-2025-002, got %s", p.BillNumber)
	}
	if got := env.store.quantity(med.ID); got != 8 {
		t.Errorf("expected stock decremented once (8), got %d", got)
	}
}

func TestService_BillCollisionTwiceIsConflict(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	env.store.bills["PH-2025-001"] = true
	env.store.bills["PH-2025-002"] = true

	_, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 2, 0)), nil)
	var conflict *apierror.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if got := env.store.quantity(med.ID); got != 10 {
		t.Errorf("expected stock untouched, got %d", got)
	}
}

func TestService_CreatePrescriptionUnknownPatient(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	req := env.request(line(med, 1, 0))
	req.PatientID = uuid.NewString()

	_, err := env.svc.CreatePrescription(context.Background(), req, nil)
	var nf *apierror.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if got := env.store.quantity(med.ID); got != 10 {
		t.Errorf("expected stock untouched, got %d", got)
	}
}

func TestService_CreatePrescriptionUnknownMedicine(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)

	_, err := env.svc.CreatePrescription(context.Background(),
		env.request(line(med, 1, 0), LineRequest{MedicineID: uuid.NewString(), Quantity: 1}), nil)
	var nf *apierror.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "medicine" {
		t.Fatalf("expected medicine NotFoundError, got %v", err)
	}
	if got := env.store.quantity(med.ID); got != 10 {
		t.Errorf("expected stock untouched, got %d", got)
	}
}

func TestService_CreatePrescriptionRejectsUnusableStock(t *testing.T) {
	env := newTestEnv()
	inactive := env.store.addMedicine("Ranitidine", 10, 2)
	inactive.IsActive = false
	expired := env.store.addMedicine("Cough Syrup", 10, 2)
	past := date.Of(2024, time.December, 31)
	expired.ExpiryDate = &past

	_, err := env.svc.CreatePrescription(context.Background(), env.request(line(inactive, 1, 0), line(expired, 1, 0)), nil)
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0].Field != "medicines[0].medicineId" || verr.Fields[1].Field != "medicines[1].medicineId" {
		t.Errorf("unexpected fields: %+v", verr.Fields)
	}
}

func TestService_CreatePrescriptionValidatesLines(t *testing.T) {
	env := newTestEnv()
	req := CreatePrescriptionRequest{
		PatientID: "nope",
		Medicines: []LineRequest{{MedicineID: "bad", Quantity: 1}, {MedicineID: uuid.NewString(), Quantity: 0}},
	}

	_, err := env.svc.CreatePrescription(context.Background(), req, nil)
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"patientId": true, "medicines[0].medicineId": true, "medicines[1].quantity": true}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %d field errors, got %+v", len(want), verr.Fields)
	}
	for _, f := range verr.Fields {
		if !want[f.Field] {
			t.Errorf("unexpected field %s", f.Field)
		}
	}
}

func TestService_CreatePrescriptionRejectsOversizedQuantities(t *testing.T) {
	env := newTestEnv()
	para := env.store.addMedicine("Paracetamol", 10, 2.5)

	_, err := env.svc.CreatePrescription(context.Background(),
		env.request(line(para, math.MaxInt, 0), line(para, math.MaxInt, 0)), nil)
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"medicines[0].quantity": true, "medicines[1].quantity": true}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %d field errors, got %+v", len(want), verr.Fields)
	}
	for _, f := range verr.Fields {
		if !want[f.Field] {
			t.Errorf("unexpected field %s", f.Field)
		}
	}
	if got := env.store.quantity(para.ID); got != 10 {
		t.Errorf("stock must be untouched, got %d", got)
	}
}

func TestService_CreatePrescriptionRejectsTotalsBeyondAmountColumn(t *testing.T) {
	env := newTestEnv()
	serum := env.store.addMedicine("Antivenom", 10, 500)

	_, err := env.svc.CreatePrescription(context.Background(),
		env.request(line(serum, 2, MaxAmount)), nil)
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	if !fields["medicines[0].total"] || !fields["total"] {
		t.Errorf("expected line and prescription total errors, got %+v", verr.Fields)
	}
	if got := env.store.quantity(serum.ID); got != 10 {
		t.Errorf("stock must be untouched, got %d", got)
	}
}

func TestService_RecentPrescriptionsCachedUntilCreate(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.svc.RecentPrescriptions(ctx, 5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if env.store.recent != 1 {
		t.Fatalf("expected one repository call, got %d", env.store.recent)
	}

	if _, err := env.svc.CreatePrescription(ctx, env.request(line(med, 1, 0)), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recent, err := env.svc.RecentPrescriptions(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.recent != 2 || len(recent) != 1 {
		t.Errorf("expected reload with 1 prescription, got calls=%d len=%d", env.store.recent, len(recent))
	}
}

func TestService_SearchByBillNumber(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	for i := 0; i < 2; i++ {
		if _, err := env.svc.CreatePrescription(context.Background(), env.request(line(med, 1, 0)), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ps, total, err := env.svc.SearchByBillNumber(context.Background(), " ph-2025-00 ", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(ps) != 2 {
		t.Errorf("expected 2 matches, got %d", total)
	}

	if _, _, err := env.svc.SearchByBillNumber(context.Background(), "  ", 20, 0); err == nil {
		t.Error("expected validation error for empty prefix")
	}
}

func TestService_ListByPatientUnknownPatient(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.svc.ListByPatient(context.Background(), uuid.New(), 20, 0)
	var nf *apierror.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestService_GetPrescriptionNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.GetPrescription(context.Background(), uuid.New())
	var nf *apierror.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

// -- Medicine Tests --

func TestService_CreateMedicineDefaultsActive(t *testing.T) {
	env := newTestEnv()
	m, err := env.svc.CreateMedicine(context.Background(), MedicineRequest{MedicineName: "  Paracetamol ", Quantity: 5, MRP: 2.499}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.IsActive || m.MedicineName != "Paracetamol" || m.MRP != 2.5 {
		t.Errorf("unexpected medicine: %+v", m)
	}
}

func TestService_CreateMedicineRejectsExpiryBeforeManufacture(t *testing.T) {
	env := newTestEnv()
	mfg := date.Of(2025, time.January, 1)
	exp := date.Of(2024, time.January, 1)
	_, err := env.svc.CreateMedicine(context.Background(), MedicineRequest{MedicineName: "X", ManufactureDate: &mfg, ExpiryDate: &exp}, nil)
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "expiryDate" {
		t.Fatalf("expected expiryDate validation error, got %v", err)
	}
}

func TestService_CreateMedicineRejectsOutOfRangeStockAndPrice(t *testing.T) {
	env := newTestEnv()
	cases := map[string]MedicineRequest{
		"quantity": {MedicineName: "X", Quantity: MaxStock + 1},
		"mrp":      {MedicineName: "X", MRP: MaxAmount * 10},
	}
	for field, req := range cases {
		_, err := env.svc.CreateMedicine(context.Background(), req, nil)
		var verr *apierror.ValidationError
		if !errors.As(err, &verr) || verr.Fields[0].Field != field {
			t.Errorf("expected %s validation error, got %v", field, err)
		}
	}
}

func TestService_ActiveMedicinesInvalidatedOnChange(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addMedicine("Paracetamol", 10, 2)

	first, err := env.svc.ActiveMedicines(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("expected 1 active medicine, got %d (%v)", len(first), err)
	}
	if _, err := env.svc.CreateMedicine(ctx, MedicineRequest{MedicineName: "Ibuprofen", Quantity: 3}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := env.svc.ActiveMedicines(ctx)
	if err != nil || len(second) != 2 {
		t.Fatalf("expected 2 active medicines after create, got %d (%v)", len(second), err)
	}
}

func TestService_ActiveMedicinesReflectDispensing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	med := env.store.addMedicine("Paracetamol", 10, 2)

	if _, err := env.svc.ActiveMedicines(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.CreatePrescription(ctx, env.request(line(med, 4, 0)), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meds, err := env.svc.ActiveMedicines(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meds[0].Quantity != 6 {
		t.Errorf("expected fresh quantity 6, got %d", meds[0].Quantity)
	}
}

func TestService_UpdateMedicineNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.UpdateMedicine(context.Background(), uuid.New(), MedicineRequest{MedicineName: "X"})
	var nf *apierror.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestService_DeleteDispensedMedicineIsConflict(t *testing.T) {
	env := newTestEnv()
	med := env.store.addMedicine("Paracetamol", 10, 2)
	env.store.deleteErr = fmt.Errorf("medicine delete: %w", &pgconn.PgError{Code: "23503"})

	err := env.svc.DeleteMedicine(context.Background(), med.ID)
	var conflict *apierror.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestService_LowStockRejectsNegativeThreshold(t *testing.T) {
	env := newTestEnv()
	env.store.addMedicine("Paracetamol", 3, 2)
	env.store.addMedicine("Ibuprofen", 30, 2)

	meds, err := env.svc.LowStock(context.Background(), 5)
	if err != nil || len(meds) != 1 {
		t.Fatalf("expected 1 low-stock medicine, got %d (%v)", len(meds), err)
	}
	if _, err := env.svc.LowStock(context.Background(), -1); err == nil {
		t.Error("expected validation error")
	}
}
