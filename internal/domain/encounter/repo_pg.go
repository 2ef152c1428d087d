package encounter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/db"
)

const patientSummaryCols = `pt.patient_id, pt.name, pt.age, pt.gender, pt.contact`

// -- Discharge Summary Repository --

type dischargeRepoPG struct {
	db db.Querier
}

func NewDischargeRepo(q db.Querier) DischargeRepository {
	return &dischargeRepoPG{db: q}
}

const (
	dischargeFrom = `discharge_summary ds JOIN patient pt ON pt.id = ds.patient_id`
	dischargeCols = `ds.id, ds.patient_id, ds.admission_date, ds.discharge_date, ds.diagnosis, ds.treatment_given,
	ds.condition_at_discharge, ds.medications_advised, ds.follow_up, ds.doctor_name,
	ds.created_by, ds.created_at, ds.updated_at, ` + patientSummaryCols
)

func (r *dischargeRepoPG) Create(ctx context.Context, d *DischargeSummary) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO discharge_summary (patient_id, admission_date, discharge_date, diagnosis, treatment_given,
			condition_at_discharge, medications_advised, follow_up, doctor_name, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		d.PatientID, d.AdmissionDate, d.DischargeDate, d.Diagnosis, d.TreatmentGiven,
		d.ConditionAtDischarge, d.MedicationsAdvised, d.FollowUp, d.DoctorName, d.CreatedBy,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("discharge summary create: %w", err)
	}
	return nil
}

func (r *dischargeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DischargeSummary, error) {
	return scanDischarge(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+dischargeCols+` FROM `+dischargeFrom+` WHERE ds.id = $1`, id))
}

func (r *dischargeRepoPG) Update(ctx context.Context, d *DischargeSummary) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE discharge_summary SET
			admission_date = $2, discharge_date = $3, diagnosis = $4, treatment_given = $5,
			condition_at_discharge = $6, medications_advised = $7, follow_up = $8, doctor_name = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING patient_id, created_by, created_at, updated_at`,
		d.ID, d.AdmissionDate, d.DischargeDate, d.Diagnosis, d.TreatmentGiven,
		d.ConditionAtDischarge, d.MedicationsAdvised, d.FollowUp, d.DoctorName,
	).Scan(&d.PatientID, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("discharge summary update: %w", db.NotFound(err))
	}
	return nil
}

func (r *dischargeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.db, "discharge_summary", id)
}

func (r *dischargeRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DischargeSummary, int, error) {
	sq := db.NewSearchQuery(dischargeFrom, dischargeCols)
	sq.AddEq("ds.patient_id", patientID)
	sq.OrderBy("ds.discharge_date DESC, ds.created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("discharge summary count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("discharge summary list: %w", err)
	}
	items, err := collect(rows, scanDischarge)
	return items, total, err
}

func (r *dischargeRepoPG) Recent(ctx context.Context, n int) ([]*DischargeSummary, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+dischargeCols+` FROM `+dischargeFrom+` ORDER BY ds.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("discharge summary recent: %w", err)
	}
	return collect(rows, scanDischarge)
}

func scanDischarge(row pgx.Row) (*DischargeSummary, error) {
	var d DischargeSummary
	var pt identity.PatientSummary
	err := row.Scan(&d.ID, &d.PatientID, &d.AdmissionDate, &d.DischargeDate, &d.Diagnosis, &d.TreatmentGiven,
		&d.ConditionAtDischarge, &d.MedicationsAdvised, &d.FollowUp, &d.DoctorName,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	pt.ID = d.PatientID
	d.Patient = &pt
	return &d, nil
}

// -- Consultation Repository --

type consultationRepoPG struct {
	db db.Querier
}

func NewConsultationRepo(q db.Querier) ConsultationRepository {
	return &consultationRepoPG{db: q}
}

const (
	consultationFrom = `consultation c JOIN patient pt ON pt.id = c.patient_id`
	consultationCols = `c.id, c.patient_id, c.doctor_name, c.department, c.chief_complaint, c.diagnosis, c.advice,
	c.fee, c.consulted_at, c.created_by, c.created_at, c.updated_at, ` + patientSummaryCols
)

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO consultation (patient_id, doctor_name, department, chief_complaint, diagnosis, advice,
			fee, consulted_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		c.PatientID, c.DoctorName, c.Department, c.ChiefComplaint, c.Diagnosis, c.Advice,
		c.Fee, c.ConsultedAt, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("consultation create: %w", err)
	}
	return nil
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsultation(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM `+consultationFrom+` WHERE c.id = $1`, id))
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE consultation SET
			doctor_name = $2, department = $3, chief_complaint = $4, diagnosis = $5, advice = $6,
			fee = $7, consulted_at = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING patient_id, created_by, created_at, updated_at`,
		c.ID, c.DoctorName, c.Department, c.ChiefComplaint, c.Diagnosis, c.Advice, c.Fee, c.ConsultedAt,
	).Scan(&c.PatientID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("consultation update: %w", db.NotFound(err))
	}
	return nil
}

func (r *consultationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.db, "consultation", id)
}

func (r *consultationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	sq := db.NewSearchQuery(consultationFrom, consultationCols)
	sq.AddEq("c.patient_id", patientID)
	sq.OrderBy("c.consulted_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("consultation count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("consultation list: %w", err)
	}
	items, err := collect(rows, scanConsultation)
	return items, total, err
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	var pt identity.PatientSummary
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorName, &c.Department, &c.ChiefComplaint, &c.Diagnosis, &c.Advice,
		&c.Fee, &c.ConsultedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	pt.ID = c.PatientID
	c.Patient = &pt
	return &c, nil
}

// -- helpers --

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func deleteRow(ctx context.Context, q db.Querier, table string, id uuid.UUID) error {
	tag, err := db.Conn(ctx, q).Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s delete: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
