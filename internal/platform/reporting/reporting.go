// Package reporting serves the dashboard: live totals and per-day series
// across patients, prescriptions and lab tests.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/hms/hms/internal/platform/db"
)

// Stats are the dashboard totals. "Today" is the current calendar day in the
// configured zone.
type Stats struct {
	TotalPatients      int       `json:"totalPatients"`
	TotalPrescriptions int       `json:"totalPrescriptions"`
	TotalLabTests      int       `json:"totalLabTests"`
	TodayPrescriptions int       `json:"todayPrescriptions"`
	TodayRevenue       float64   `json:"todayRevenue"`
	PendingLabTests    int       `json:"pendingLabTests"`
	LowStockMedicines  int       `json:"lowStockMedicines"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// DayStats is one point of the history series.
type DayStats struct {
	Date          string  `json:"date"`
	Patients      int     `json:"patients"`
	Prescriptions int     `json:"prescriptions"`
	LabTests      int     `json:"labTests"`
	Revenue       float64 `json:"revenue"`
}

type History struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Days []DayStats `json:"days"`
}

// Measure is a per-day series: SQL yields (day text, value) rows for
// created_at in [$1, $2), days bucketed in zone $3.
type Measure struct {
	ID  string
	SQL string
}

const (
	MeasurePatients      = "patients"
	MeasurePrescriptions = "prescriptions"
	MeasureLabTests      = "lab-tests"
	MeasureRevenue       = "revenue"
)

// DailyMeasures are evaluated in order to build a History.
var DailyMeasures = []Measure{
	{
		ID: MeasurePatients,
		SQL: `SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COUNT(*)::float8
			FROM patient WHERE created_at >= $1 AND created_at < $2 GROUP BY day`,
	},
	{
		ID: MeasurePrescriptions,
		SQL: `SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COUNT(*)::float8
			FROM prescription WHERE created_at >= $1 AND created_at < $2 GROUP BY day`,
	},
	{
		ID: MeasureLabTests,
		SQL: `SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COUNT(*)::float8
			FROM lab_test WHERE created_at >= $1 AND created_at < $2 GROUP BY day`,
	},
	{
		ID: MeasureRevenue,
		SQL: `SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COALESCE(SUM(total), 0)::float8
			FROM prescription WHERE created_at >= $1 AND created_at < $2 GROUP BY day`,
	},
}

// FindMeasure looks up a daily measure by ID.
func FindMeasure(id string) *Measure {
	for i := range DailyMeasures {
		if DailyMeasures[i].ID == id {
			return &DailyMeasures[i]
		}
	}
	return nil
}

type Repository interface {
	// Totals counts everything, with today bounded by [dayStart, dayEnd).
	Totals(ctx context.Context, dayStart, dayEnd time.Time, lowStockThreshold int) (*Stats, error)
	// Series evaluates m and returns its values keyed by YYYY-MM-DD.
	Series(ctx context.Context, m Measure, from, to time.Time, zone string) (map[string]float64, error)
}

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

const totalsSQL = `
	SELECT
		(SELECT COUNT(*) FROM patient),
		(SELECT COUNT(*) FROM prescription),
		(SELECT COUNT(*) FROM lab_test),
		(SELECT COUNT(*) FROM prescription WHERE created_at >= $1 AND created_at < $2),
		(SELECT COALESCE(SUM(total), 0)::float8 FROM prescription WHERE created_at >= $1 AND created_at < $2),
		(SELECT COUNT(*) FROM lab_test WHERE status IN ('pending', 'in_progress')),
		(SELECT COUNT(*) FROM medicine WHERE is_active AND quantity <= $3)`

func (r *repoPG) Totals(ctx context.Context, dayStart, dayEnd time.Time, lowStockThreshold int) (*Stats, error) {
	var s Stats
	err := db.Conn(ctx, r.db).QueryRow(ctx, totalsSQL, dayStart, dayEnd, lowStockThreshold).Scan(
		&s.TotalPatients, &s.TotalPrescriptions, &s.TotalLabTests,
		&s.TodayPrescriptions, &s.TodayRevenue, &s.PendingLabTests, &s.LowStockMedicines)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	return &s, nil
}

func (r *repoPG) Series(ctx context.Context, m Measure, from, to time.Time, zone string) (map[string]float64, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, m.SQL, from, to, zone)
	if err != nil {
		return nil, fmt.Errorf("stats series %s: %w", m.ID, err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var day string
		var v float64
		if err := rows.Scan(&day, &v); err != nil {
			return nil, fmt.Errorf("stats series %s: %w", m.ID, err)
		}
		out[day] = v
	}
	return out, rows.Err()
}
