package medication

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/db"
)

// -- Medicine Repository --

type medicineRepoPG struct {
	db db.Querier
}

func NewMedicineRepo(q db.Querier) MedicineRepository {
	return &medicineRepoPG{db: q}
}

const medicineCols = `id, medicine_name, batch_number, quantity, mrp, manufacture_date, expiry_date,
	category, is_active, created_by, created_at, updated_at`

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO medicine (medicine_name, batch_number, quantity, mrp, manufacture_date, expiry_date,
			category, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		m.MedicineName, m.BatchNumber, m.Quantity, m.MRP, m.ManufactureDate, m.ExpiryDate,
		m.Category, m.IsActive, m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medicine create: %w", err)
	}
	return nil
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicine WHERE id = $1`, id))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE medicine SET
			medicine_name = $2, batch_number = $3, quantity = $4, mrp = $5,
			manufacture_date = $6, expiry_date = $7, category = $8, is_active = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_by, created_at, updated_at`,
		m.ID, m.MedicineName, m.BatchNumber, m.Quantity, m.MRP,
		m.ManufactureDate, m.ExpiryDate, m.Category, m.IsActive,
	).Scan(&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medicine update: %w", db.NotFound(err))
	}
	return nil
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM medicine WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("medicine delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *medicineRepoPG) List(ctx context.Context, f MedicineFilter, limit, offset int) ([]*Medicine, int, error) {
	sq := db.NewSearchQuery("medicine", medicineCols)
	sq.AddContains(f.Query, "medicine_name", "batch_number")
	if f.Category != "" {
		sq.Add(fmt.Sprintf("lower(category) = lower($%d)", sq.Idx()), f.Category)
	}
	if f.Active != nil {
		sq.AddEq("is_active", *f.Active)
	}
	sq.OrderBy("medicine_name, expiry_date NULLS LAST")

	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("medicine count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("medicine list: %w", err)
	}
	meds, err := collectMedicines(rows)
	return meds, total, err
}

func (r *medicineRepoPG) ListActive(ctx context.Context) ([]*Medicine, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT `+medicineCols+` FROM medicine
		WHERE is_active AND quantity > 0
		ORDER BY medicine_name, expiry_date NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("medicine active: %w", err)
	}
	return collectMedicines(rows)
}

func (r *medicineRepoPG) LowStock(ctx context.Context, threshold int) ([]*Medicine, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT `+medicineCols+` FROM medicine
		WHERE is_active AND quantity <= $1
		ORDER BY quantity, medicine_name`, threshold)
	if err != nil {
		return nil, fmt.Errorf("medicine low stock: %w", err)
	}
	return collectMedicines(rows)
}

func (r *medicineRepoPG) All(ctx context.Context) ([]*Medicine, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+medicineCols+` FROM medicine ORDER BY medicine_name, batch_number`)
	if err != nil {
		return nil, fmt.Errorf("medicine all: %w", err)
	}
	return collectMedicines(rows)
}

func (r *medicineRepoPG) LockForDispense(ctx context.Context, ids []uuid.UUID) ([]*Medicine, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT `+medicineCols+` FROM medicine
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("medicine lock: %w", err)
	}
	return collectMedicines(rows)
}

func (r *medicineRepoPG) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `
		UPDATE medicine SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2`, id, qty)
	if err != nil {
		return false, fmt.Errorf("medicine decrement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func collectMedicines(rows pgx.Rows) ([]*Medicine, error) {
	defer rows.Close()
	var meds []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.MedicineName, &m.BatchNumber, &m.Quantity, &m.MRP,
		&m.ManufactureDate, &m.ExpiryDate, &m.Category, &m.IsActive,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &m, nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	db db.Querier
}

func NewPrescriptionRepo(q db.Querier) PrescriptionRepository {
	return &prescriptionRepoPG{db: q}
}

const (
	prescriptionFrom = `prescription p JOIN patient pt ON pt.id = p.patient_id`
	prescriptionCols = `p.id, p.bill_number, p.patient_id, p.subtotal, p.tax, p.total, p.created_by, p.created_at,
	pt.patient_id, pt.name, pt.age, pt.gender, pt.contact`
	itemCols = `id, prescription_id, line_no, medicine_id, medicine_name, dosage, quantity, unit_price, line_total`
)

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	conn := db.Conn(ctx, r.db)
	err := conn.QueryRow(ctx, `
		INSERT INTO prescription (bill_number, patient_id, subtotal, tax, total, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		p.BillNumber, p.PatientID, p.Subtotal, p.Tax, p.Total, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("prescription create: %w", err)
	}

	for i := range p.Items {
		it := &p.Items[i]
		err := conn.QueryRow(ctx, `
			INSERT INTO prescription_item (prescription_id, line_no, medicine_id, medicine_name, dosage,
				quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			p.ID, it.LineNo, it.MedicineID, it.MedicineName, it.Dosage, it.Quantity, it.UnitPrice, it.LineTotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("prescription item %d: %w", it.LineNo, err)
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	conn := db.Conn(ctx, r.db)
	p, err := scanPrescription(conn.QueryRow(ctx, `SELECT `+prescriptionCols+` FROM `+prescriptionFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) Recent(ctx context.Context, n int) ([]*Prescription, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+prescriptionCols+` FROM `+prescriptionFrom+` ORDER BY p.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("prescription recent: %w", err)
	}
	ps, err := collectPrescriptions(rows)
	if err != nil {
		return nil, err
	}
	return ps, r.attachItems(ctx, ps)
}

func (r *prescriptionRepoPG) SearchByBillNumber(ctx context.Context, prefix string, limit, offset int) ([]*Prescription, int, error) {
	sq := db.NewSearchQuery(prescriptionFrom, prescriptionCols)
	sq.AddPrefix("p.bill_number", prefix)
	sq.OrderBy("p.bill_number DESC")
	return r.search(ctx, sq, limit, offset)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	sq := db.NewSearchQuery(prescriptionFrom, prescriptionCols)
	sq.AddEq("p.patient_id", patientID)
	sq.OrderBy("p.created_at DESC")
	return r.search(ctx, sq, limit, offset)
}

func (r *prescriptionRepoPG) search(ctx context.Context, sq *db.SearchQuery, limit, offset int) ([]*Prescription, int, error) {
	conn := db.Conn(ctx, r.db)
	var total int
	if err := conn.QueryRow(ctx, sq.CountSQL(), sq.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("prescription count: %w", err)
	}
	rows, err := conn.Query(ctx, sq.DataSQL(), sq.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("prescription search: %w", err)
	}
	ps, err := collectPrescriptions(rows)
	if err != nil {
		return nil, 0, err
	}
	return ps, total, r.attachItems(ctx, ps)
}

// attachItems loads the lines of every prescription in one query.
func (r *prescriptionRepoPG) attachItems(ctx context.Context, ps []*Prescription) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ps))
	byID := make(map[uuid.UUID]*Prescription, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Items = []PrescriptionItem{}
	}

	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+itemCols+` FROM prescription_item WHERE prescription_id = ANY($1) ORDER BY prescription_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("prescription items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it PrescriptionItem
		var owner uuid.UUID
		if err := rows.Scan(&it.ID, &owner, &it.LineNo, &it.MedicineID, &it.MedicineName, &it.Dosage,
			&it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return fmt.Errorf("prescription item scan: %w", err)
		}
		if p, ok := byID[owner]; ok {
			p.Items = append(p.Items, it)
		}
	}
	return rows.Err()
}

func collectPrescriptions(rows pgx.Rows) ([]*Prescription, error) {
	defer rows.Close()
	var ps []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var pt identity.PatientSummary
	err := row.Scan(&p.ID, &p.BillNumber, &p.PatientID, &p.Subtotal, &p.Tax, &p.Total, &p.CreatedBy, &p.CreatedAt,
		&pt.PatientID, &pt.Name, &pt.Age, &pt.Gender, &pt.Contact)
	if err != nil {
		return nil, db.NotFound(err)
	}
	pt.ID = p.PatientID
	p.Patient = &pt
	return &p, nil
}
