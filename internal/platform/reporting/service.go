package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/export"
	"github.com/hms/hms/pkg/money"
)

const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

type Service struct {
	repo     Repository
	cache    *cache.Cache
	loc      *time.Location
	lowStock int
	log      zerolog.Logger
	now      func() time.Time
}

// NewService returns a Service that bounds days in loc and counts medicines
// at or below lowStock as low.
func NewService(repo Repository, c *cache.Cache, loc *time.Location, lowStock int, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, cache: c, loc: loc, lowStock: lowStock, log: log, now: time.Now}
}

// today returns the start of the current day and of the next one.
func (s *Service) today() (time.Time, time.Time) {
	n := s.now().In(s.loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	start, end := s.today()
	return cache.GetOrLoad(ctx, s.cache, cache.Stats, "totals:"+start.Format("2006-01-02"), func(ctx context.Context) (*Stats, error) {
		st, err := s.repo.Totals(ctx, start, end, s.lowStock)
		if err != nil {
			return nil, err
		}
		st.TodayRevenue = money.Round(st.TodayRevenue)
		st.GeneratedAt = s.now().UTC()
		return st, nil
	})
}

// History returns one entry per day for the last days days, today included,
// oldest first. Days without activity are zero.
func (s *Service) History(ctx context.Context, days int) (*History, error) {
	if days < 1 || days > MaxHistoryDays {
		return nil, apierror.Invalid("days", "must be between 1 and %d", MaxHistoryDays)
	}
	_, end := s.today()
	start := end.AddDate(0, 0, -days)
	variant := fmt.Sprintf("history:%d:%s", days, start.Format("2006-01-02"))

	return cache.GetOrLoad(ctx, s.cache, cache.Stats, variant, func(ctx context.Context) (*History, error) {
		series := make(map[string]map[string]float64, len(DailyMeasures))
		for _, m := range DailyMeasures {
			values, err := s.repo.Series(ctx, m, start, end, s.loc.String())
			if err != nil {
				return nil, err
			}
			series[m.ID] = values
		}

		h := &History{
			From: start.Format("2006-01-02"),
			To:   end.AddDate(0, 0, -1).Format("2006-01-02"),
			Days: make([]DayStats, 0, days),
		}
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			h.Days = append(h.Days, DayStats{
				Date:          key,
				Patients:      int(series[MeasurePatients][key]),
				Prescriptions: int(series[MeasurePrescriptions][key]),
				LabTests:      int(series[MeasureLabTests][key]),
				Revenue:       money.Round(series[MeasureRevenue][key]),
			})
		}
		return h, nil
	})
}

var historyExportHeaders = []string{"Date", "New Patients", "Prescriptions", "Lab Tests", "Revenue"}

// ExportHistory renders History(days) as a workbook with a totals row.
func (s *Service) ExportHistory(ctx context.Context, days int) ([]byte, error) {
	h, err := s.History(ctx, days)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(h.Days)+1)
	var patients, prescriptions, labTests int
	var revenue []float64
	for _, d := range h.Days {
		rows = append(rows, []any{d.Date, d.Patients, d.Prescriptions, d.LabTests, d.Revenue})
		patients += d.Patients
		prescriptions += d.Prescriptions
		labTests += d.LabTests
		revenue = append(revenue, d.Revenue)
	}
	rows = append(rows, []any{"Total", patients, prescriptions, labTests, money.Sum(revenue...)})

	s.log.Debug().Int("days", days).Msg("exporting stats history")
	return export.Workbook(export.Sheet{
		Name:    "Daily Stats",
		Headers: historyExportHeaders,
		Widths:  []float64{14, 14, 14, 12, 14},
		Rows:    rows,
	})
}
