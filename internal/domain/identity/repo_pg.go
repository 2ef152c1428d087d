package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	db db.Querier
}

func NewPatientRepo(q db.Querier) PatientRepository {
	return &patientRepoPG{db: q}
}

const patientCols = `id, patient_id, name, age, gender, contact, address, created_by, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO patient (patient_id, name, age, gender, contact, address, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.PatientID, p.Name, p.Age, p.Gender, p.Contact, p.Address, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, "", limit, offset)
}

func (r *patientRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	sq := db.NewSearchQuery("patient", patientCols)
	sq.AddContains(q, "name", "patient_id", "contact")
	sq.OrderBy("created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient search: %w", err)
	}
	patients, err := collectPatients(rows)
	return patients, total, err
}

func (r *patientRepoPG) Recent(ctx context.Context, n int) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("patient recent: %w", err)
	}
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientID, &p.Name, &p.Age, &p.Gender, &p.Contact, &p.Address, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

// -- Registration Repository --

type registrationRepoPG struct {
	db db.Querier
}

func NewRegistrationRepo(q db.Querier) RegistrationRepository {
	return &registrationRepoPG{db: q}
}

const registrationCols = `id, mru_number, first_name, last_name, date_of_birth, age, gender,
	blood_group, marital_status, phone, email, address, city, state, pincode,
	emergency_contact_name, emergency_contact_phone, insurance_provider, insurance_number,
	allergies, created_by, created_at, updated_at`

func (r *registrationRepoPG) Create(ctx context.Context, reg *Registration) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO patient_registration (
			mru_number, first_name, last_name, date_of_birth, age, gender,
			blood_group, marital_status, phone, email, address, city, state, pincode,
			emergency_contact_name, emergency_contact_phone, insurance_provider, insurance_number,
			allergies, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id, created_at, updated_at`,
		reg.MRUNumber, reg.FirstName, reg.LastName, reg.DateOfBirth, reg.Age, reg.Gender,
		reg.BloodGroup, reg.MaritalStatus, reg.Phone, reg.Email, reg.Address, reg.City, reg.State, reg.Pincode,
		reg.EmergencyContactName, reg.EmergencyContactPhone, reg.InsuranceProvider, reg.InsuranceNumber,
		reg.Allergies, reg.CreatedBy,
	).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("registration create: %w", err)
	}
	return nil
}

func (r *registrationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return scanRegistration(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationCols+` FROM patient_registration WHERE id = $1`, id))
}

func (r *registrationRepoPG) Update(ctx context.Context, reg *Registration) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE patient_registration SET
			first_name = $2, last_name = $3, date_of_birth = $4, age = $5, gender = $6,
			blood_group = $7, marital_status = $8, phone = $9, email = $10, address = $11,
			city = $12, state = $13, pincode = $14,
			emergency_contact_name = $15, emergency_contact_phone = $16,
			insurance_provider = $17, insurance_number = $18, allergies = $19,
			updated_at = NOW()
		WHERE id = $1
		RETURNING mru_number, created_by, created_at, updated_at`,
		reg.ID, reg.FirstName, reg.LastName, reg.DateOfBirth, reg.Age, reg.Gender,
		reg.BloodGroup, reg.MaritalStatus, reg.Phone, reg.Email, reg.Address,
		reg.City, reg.State, reg.Pincode,
		reg.EmergencyContactName, reg.EmergencyContactPhone,
		reg.InsuranceProvider, reg.InsuranceNumber, reg.Allergies,
	).Scan(&reg.MRUNumber, &reg.CreatedBy, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return db.NotFound(err)
	}
	return nil
}

func (r *registrationRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Registration, int, error) {
	sq := db.NewSearchQuery("patient_registration", registrationCols)
	sq.AddContains(q, "first_name", "last_name", "mru_number", "phone")
	sq.OrderBy("created_at DESC")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("registration count: %w", err)
	}

	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("registration search: %w", err)
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	return regs, total, rows.Err()
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(
		&reg.ID, &reg.MRUNumber, &reg.FirstName, &reg.LastName, &reg.DateOfBirth, &reg.Age, &reg.Gender,
		&reg.BloodGroup, &reg.MaritalStatus, &reg.Phone, &reg.Email, &reg.Address, &reg.City, &reg.State, &reg.Pincode,
		&reg.EmergencyContactName, &reg.EmergencyContactPhone, &reg.InsuranceProvider, &reg.InsuranceNumber,
		&reg.Allergies, &reg.CreatedBy, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &reg, nil
}
