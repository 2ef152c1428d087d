package surgery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/db"
)

type caseSheetRepoPG struct {
	db db.Querier
}

func NewCaseSheetRepo(q db.Querier) CaseSheetRepository {
	return &caseSheetRepoPG{db: q}
}

const (
	caseSheetFrom = `surgical_case_sheet cs JOIN patient pt ON pt.id = cs.patient_id`
	caseSheetCols = `cs.id, cs.case_number, cs.patient_id, cs.procedure_name, cs.surgeon, cs.anesthetist,
	cs.anesthesia_type, cs.surgery_date, cs.pre_op_diagnosis, cs.post_op_diagnosis, cs.findings, cs.notes,
	cs.status, cs.created_by, cs.created_at, cs.updated_at,
	pt.patient_id, pt.name, pt.age, pt.gender, pt.contact`
)

func (r *caseSheetRepoPG) Create(ctx context.Context, cs *CaseSheet) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO surgical_case_sheet (case_number, patient_id, procedure_name, surgeon, anesthetist,
			anesthesia_type, surgery_date, pre_op_diagnosis, post_op_diagnosis, findings, notes, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		cs.CaseNumber, cs.PatientID, cs.ProcedureName, cs.Surgeon, cs.Anesthetist,
		cs.AnesthesiaType, cs.SurgeryDate, cs.PreOpDiagnosis, cs.PostOpDiagnosis, cs.Findings, cs.Notes, cs.Status, cs.CreatedBy,
	).Scan(&cs.ID, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("case sheet create: %w", err)
	}
	return nil
}

func (r *caseSheetRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CaseSheet, error) {
	return scanCaseSheet(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+caseSheetCols+` FROM `+caseSheetFrom+` WHERE cs.id = $1`, id))
}

func (r *caseSheetRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*CaseSheet, error) {
	return scanCaseSheet(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+caseSheetCols+` FROM `+caseSheetFrom+` WHERE cs.id = $1 FOR UPDATE OF cs`, id))
}

func (r *caseSheetRepoPG) Update(ctx context.Context, cs *CaseSheet) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE surgical_case_sheet SET
			procedure_name = $2, surgeon = $3, anesthetist = $4, anesthesia_type = $5, surgery_date = $6,
			pre_op_diagnosis = $7, post_op_diagnosis = $8, findings = $9, notes = $10, status = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		cs.ID, cs.ProcedureName, cs.Surgeon, cs.Anesthetist, cs.AnesthesiaType, cs.SurgeryDate,
		cs.PreOpDiagnosis, cs.PostOpDiagnosis, cs.Findings, cs.Notes, cs.Status,
	).Scan(&cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("case sheet update: %w", db.NotFound(err))
	}
	return nil
}

func (r *caseSheetRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM surgical_case_sheet WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("case sheet delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *caseSheetRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CaseSheet, int, error) {
	sq := db.NewSearchQuery(caseSheetFrom, caseSheetCols)
	sq.AddEq("cs.patient_id", patientID)
	sq.OrderBy("cs.surgery_date DESC, cs.created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("case sheet count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("case sheet list: %w", err)
	}
	items, err := collectCaseSheets(rows)
	return items, total, err
}

func (r *caseSheetRepoPG) Recent(ctx context.Context, n int) ([]*CaseSheet, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+caseSheetCols+` FROM `+caseSheetFrom+` ORDER BY cs.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("case sheet recent: %w", err)
	}
	return collectCaseSheets(rows)
}

func collectCaseSheets(rows pgx.Rows) ([]*CaseSheet, error) {
	defer rows.Close()
	var out []*CaseSheet
	for rows.Next() {
		cs, err := scanCaseSheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanCaseSheet(row pgx.Row) (*CaseSheet, error) {
	var cs CaseSheet
	var pt identity.PatientSummary
	err := row.Scan(&cs.ID, &cs.CaseNumber, &cs.PatientID, &cs.ProcedureName, &cs.Surgeon, &cs.Anesthetist,
		&cs.AnesthesiaType, &cs.SurgeryDate, &cs.PreOpDiagnosis, &cs.PostOpDiagnosis, &cs.Findings, &cs.Notes,
		&cs.Status, &cs.CreatedBy, &cs.CreatedAt, &cs.UpdatedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	pt.ID = cs.PatientID
	cs.Patient = &pt
	return &cs, nil
}
