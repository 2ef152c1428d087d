package diagnostics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/db"
)

type labTestRepoPG struct {
	db db.Querier
}

func NewLabTestRepo(q db.Querier) LabTestRepository {
	return &labTestRepoPG{db: q}
}

const (
	labTestFrom = `lab_test lt JOIN patient pt ON pt.id = lt.patient_id`
	labTestCols = `lt.id, lt.patient_id, lt.tests, lt.results, lt.referred_by, lt.sample_type, lt.notes, lt.status,
	lt.total_amount, lt.created_by, lt.created_at, lt.updated_at, lt.completed_at,
	pt.patient_id, pt.name, pt.age, pt.gender, pt.contact`
)

func (r *labTestRepoPG) Create(ctx context.Context, lt *LabTest) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO lab_test (patient_id, tests, results, referred_by, sample_type, notes, status, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		lt.PatientID, lt.Tests, lt.Results, lt.ReferredBy, lt.SampleType, lt.Notes, lt.Status, lt.TotalAmount, lt.CreatedBy,
	).Scan(&lt.ID, &lt.CreatedAt, &lt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("lab test create: %w", err)
	}
	return nil
}

func (r *labTestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return scanLabTest(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+labTestCols+` FROM `+labTestFrom+` WHERE lt.id = $1`, id))
}

func (r *labTestRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return scanLabTest(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+labTestCols+` FROM `+labTestFrom+` WHERE lt.id = $1 FOR UPDATE OF lt`, id))
}

func (r *labTestRepoPG) UpdateResults(ctx context.Context, lt *LabTest) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE lab_test SET results = $2, status = $3, notes = $4, completed_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		lt.ID, lt.Results, lt.Status, lt.Notes, lt.CompletedAt,
	).Scan(&lt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("lab test update: %w", db.NotFound(err))
	}
	return nil
}

func (r *labTestRepoPG) List(ctx context.Context, f LabTestFilter, limit, offset int) ([]*LabTest, int, error) {
	sq := db.NewSearchQuery(labTestFrom, labTestCols)
	if f.PatientID != nil {
		sq.AddEq("lt.patient_id", *f.PatientID)
	}
	if f.Status != "" {
		sq.AddEq("lt.status", f.Status)
	}
	sq.OrderBy("lt.created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("lab test count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("lab test list: %w", err)
	}
	tests, err := collectLabTests(rows)
	return tests, total, err
}

func (r *labTestRepoPG) Recent(ctx context.Context, n int) ([]*LabTest, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+labTestCols+` FROM `+labTestFrom+` ORDER BY lt.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("lab test recent: %w", err)
	}
	return collectLabTests(rows)
}

func collectLabTests(rows pgx.Rows) ([]*LabTest, error) {
	defer rows.Close()
	var tests []*LabTest
	for rows.Next() {
		lt, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, lt)
	}
	return tests, rows.Err()
}

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var lt LabTest
	var pt identity.PatientSummary
	err := row.Scan(&lt.ID, &lt.PatientID, &lt.Tests, &lt.Results, &lt.ReferredBy, &lt.SampleType, &lt.Notes, &lt.Status,
		&lt.TotalAmount, &lt.CreatedBy, &lt.CreatedAt, &lt.UpdatedAt, &lt.CompletedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	if lt.Results == nil {
		lt.Results = []TestResult{}
	}
	pt.ID = lt.PatientID
	lt.Patient = &pt
	return &lt, nil
}
