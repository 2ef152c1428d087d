package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/db"
)

type historyRepoPG struct {
	db db.Querier
}

func NewHistoryRepo(q db.Querier) HistoryRepository {
	return &historyRepoPG{db: q}
}

const (
	historyFrom = `medical_history mh JOIN patient pt ON pt.id = mh.patient_id`
	historyCols = `mh.id, mh.patient_id, mh.condition, mh.diagnosed_on, mh.status, mh.allergies,
	mh.current_medications, mh.notes, mh.created_by, mh.created_at, mh.updated_at,
	pt.patient_id, pt.name, pt.age, pt.gender, pt.contact`
)

func (r *historyRepoPG) Create(ctx context.Context, h *MedicalHistory) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO medical_history (patient_id, condition, diagnosed_on, status, allergies, current_medications, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		h.PatientID, h.Condition, h.DiagnosedOn, h.Status, h.Allergies, h.CurrentMedications, h.Notes, h.CreatedBy,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medical history create: %w", err)
	}
	return nil
}

func (r *historyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalHistory, error) {
	return scanHistory(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+historyCols+` FROM `+historyFrom+` WHERE mh.id = $1`, id))
}

func (r *historyRepoPG) Update(ctx context.Context, h *MedicalHistory) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE medical_history SET
			condition = $2, diagnosed_on = $3, status = $4, allergies = $5,
			current_medications = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING patient_id, created_by, created_at, updated_at`,
		h.ID, h.Condition, h.DiagnosedOn, h.Status, h.Allergies, h.CurrentMedications, h.Notes,
	).Scan(&h.PatientID, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medical history update: %w", db.NotFound(err))
	}
	return nil
}

func (r *historyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM medical_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("medical history delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *historyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*MedicalHistory, int, error) {
	sq := db.NewSearchQuery(historyFrom, historyCols)
	sq.AddEq("mh.patient_id", patientID)
	if status != "" {
		sq.AddEq("mh.status", status)
	}
	sq.OrderBy("mh.diagnosed_on DESC NULLS LAST, mh.created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("medical history count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("medical history list: %w", err)
	}
	defer rows.Close()

	var items []*MedicalHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

func scanHistory(row pgx.Row) (*MedicalHistory, error) {
	var h MedicalHistory
	var pt identity.PatientSummary
	err := row.Scan(&h.ID, &h.PatientID, &h.Condition, &h.DiagnosedOn, &h.Status, &h.Allergies,
		&h.CurrentMedications, &h.Notes, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	pt.ID = h.PatientID
	h.Patient = &pt
	return &h, nil
}
