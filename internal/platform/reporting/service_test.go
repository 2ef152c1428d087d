package reporting

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
)

type mockRepo struct {
	totals      Stats
	series      map[string]map[string]float64
	totalsCalls int
	seriesCalls int
	dayStart    time.Time
	dayEnd      time.Time
	threshold   int
	zone        string
	err         error
}

func (m *mockRepo) Totals(_ context.Context, dayStart, dayEnd time.Time, threshold int) (*Stats, error) {
	m.totalsCalls++
	if m.err != nil {
		return nil, m.err
	}
	m.dayStart, m.dayEnd, m.threshold = dayStart, dayEnd, threshold
	st := m.totals
	return &st, nil
}

func (m *mockRepo) Series(_ context.Context, measure Measure, from, to time.Time, zone string) (map[string]float64, error) {
	m.seriesCalls++
	if m.err != nil {
		return nil, m.err
	}
	m.zone = zone
	return m.series[measure.ID], nil
}

var ist = time.FixedZone("IST", 5*3600+1800)

// 2025-07-11 02:00 in IST.
var reportNow = time.Date(2025, 7, 10, 20, 30, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	repo  *mockRepo
	cache *cache.Cache
}

func newTestEnv() *testEnv {
	repo := &mockRepo{
		totals: Stats{
			TotalPatients: 120, TotalPrescriptions: 340, TotalLabTests: 95,
			TodayPrescriptions: 7, TodayRevenue: 1234.5649, PendingLabTests: 4, LowStockMedicines: 3,
		},
		series: map[string]map[string]float64{
			MeasurePatients:      {"2025-07-09": 2, "2025-07-11": 1},
			MeasurePrescriptions: {"2025-07-09": 5, "2025-07-10": 3},
			MeasureLabTests:      {"2025-07-10": 4},
			MeasureRevenue:       {"2025-07-09": 410.256, "2025-07-10": 99.5},
		},
	}
	c := cache.New(cache.NewMemoryStore(), time.Minute, zerolog.Nop())
	svc := NewService(repo, c, ist, 10, zerolog.Nop())
	svc.now = func() time.Time { return reportNow }
	return &testEnv{svc: svc, repo: repo, cache: c}
}

func TestService_Stats(t *testing.T) {
	env := newTestEnv()

	st, err := env.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalPatients != 120 || st.LowStockMedicines != 3 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if st.TodayRevenue != 1234.56 {
		t.Errorf("expected rounded revenue 1234.56, got %v", st.TodayRevenue)
	}
	if env.repo.threshold != 10 {
		t.Errorf("expected low stock threshold 10, got %d", env.repo.threshold)
	}

	wantStart := time.Date(2025, 7, 11, 0, 0, 0, 0, ist)
	if !env.repo.dayStart.Equal(wantStart) || !env.repo.dayEnd.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("today bounds = [%s, %s)", env.repo.dayStart, env.repo.dayEnd)
	}
}

func TestService_Stats_CachedUntilInvalidated(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Stats(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if env.repo.totalsCalls != 1 {
		t.Errorf("expected one repository call, got %d", env.repo.totalsCalls)
	}

	env.cache.Invalidate(ctx, cache.PrescriptionCreated)
	if _, err := env.svc.Stats(ctx); err != nil {
		t.Fatal(err)
	}
	if env.repo.totalsCalls != 2 {
		t.Errorf("expected reload after invalidation, got %d calls", env.repo.totalsCalls)
	}
}

func TestService_Stats_RepoError(t *testing.T) {
	env := newTestEnv()
	env.repo.err = errors.New("connection refused")

	if _, err := env.svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_History(t *testing.T) {
	env := newTestEnv()

	h, err := env.svc.History(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.From != "2025-07-09" || h.To != "2025-07-11" {
		t.Errorf("range = %s..%s", h.From, h.To)
	}
	if len(h.Days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(h.Days))
	}
	want := []DayStats{
		{Date: "2025-07-09", Patients: 2, Prescriptions: 5, LabTests: 0, Revenue: 410.26},
		{Date: "2025-07-10", Patients: 0, Prescriptions: 3, LabTests: 4, Revenue: 99.5},
		{Date: "2025-07-11", Patients: 1, Prescriptions: 0, LabTests: 0, Revenue: 0},
	}
	for i := range want {
		if h.Days[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, h.Days[i], want[i])
		}
	}
	if env.repo.zone != "IST" {
		t.Errorf("expected zone passed through, got %q", env.repo.zone)
	}
	if env.repo.seriesCalls != len(DailyMeasures) {
		t.Errorf("expected %d series queries, got %d", len(DailyMeasures), env.repo.seriesCalls)
	}
}

func TestService_History_Bounds(t *testing.T) {
	env := newTestEnv()
	for _, days := range []int{0, -1, MaxHistoryDays + 1} {
		_, err := env.svc.History(context.Background(), days)
		var verr *apierror.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("days=%d: expected ValidationError, got %v", days, err)
		}
	}
	if env.repo.seriesCalls != 0 {
		t.Error("out of range requests must not reach the database")
	}

	h, err := env.svc.History(context.Background(), MaxHistoryDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Days) != MaxHistoryDays {
		t.Errorf("expected %d days, got %d", MaxHistoryDays, len(h.Days))
	}
}

func TestService_ExportHistory(t *testing.T) {
	env := newTestEnv()

	data, err := env.svc.ExportHistory(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Daily Stats")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header, 3 days and a total row, got %d rows", len(rows))
	}
	if rows[0][0] != "Date" || rows[1][0] != "2025-07-09" {
		t.Errorf("unexpected leading rows: %v", rows[:2])
	}
	total := rows[4]
	if total[0] != "Total" || total[1] != "3" || total[2] != "8" || total[3] != "4" || total[4] != "509.76" {
		t.Errorf("unexpected totals row: %v", total)
	}
}

func TestFindMeasure(t *testing.T) {
	for _, m := range DailyMeasures {
		if FindMeasure(m.ID) == nil {
			t.Errorf("measure %s not found", m.ID)
		}
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
	}
	if FindMeasure("bed-occupancy") != nil {
		t.Error("expected nil for unknown measure")
	}
}
