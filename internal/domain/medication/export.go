package medication

import (
	"context"

	"github.com/hms/hms/internal/platform/export"
	"github.com/hms/hms/pkg/date"
	"github.com/hms/hms/pkg/money"
)

var medicineExportHeaders = []string{
	"Medicine", "Batch", "Category", "Quantity", "MRP",
	"Manufactured", "Expires", "Active", "Stock Value",
}

// ExportMedicines renders the whole inventory as an xlsx workbook.
func (s *Service) ExportMedicines(ctx context.Context) ([]byte, error) {
	meds, err := s.medicines.All(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, len(meds))
	for i, m := range meds {
		rows[i] = []any{
			m.MedicineName,
			m.BatchNumber,
			m.Category,
			m.Quantity,
			m.MRP,
			optionalDate(m.ManufactureDate),
			optionalDate(m.ExpiryDate),
			yesNo(m.IsActive),
			money.Round(m.MRP * float64(m.Quantity)),
		}
	}

	return export.Workbook(export.Sheet{
		Name:    "Medicines",
		Headers: medicineExportHeaders,
		Widths:  []float64{30, 15, 18, 10, 10, 14, 14, 8, 14},
		Rows:    rows,
	})
}

func optionalDate(d *date.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
