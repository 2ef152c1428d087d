package medication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/platform/db"
)

var medicineColumns = []string{"id", "medicine_name", "batch_number", "quantity", "mrp", "manufacture_date",
	"expiry_date", "category", "is_active", "created_by", "created_at", "updated_at"}

// anyArgs matches n positional arguments whose values the test does not pin.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func medicineRow(rows *pgxmock.Rows, id uuid.UUID, name string, qty int) *pgxmock.Rows {
	return rows.AddRow(id, name, "B1", qty, 2.5, nil, nil, "tablet", true, nil, time.Now(), time.Now())
}

func TestMedicineRepoPG_LockForDispense(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("(?s)WHERE id = ANY.+FOR UPDATE").
		WithArgs([]uuid.UUID{a, b}).
		WillReturnRows(medicineRow(medicineRow(pgxmock.NewRows(medicineColumns), a, "Paracetamol", 10), b, "ORS", 1))

	meds, err := NewMedicineRepo(mock).LockForDispense(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "Paracetamol", meds[0].MedicineName)
	assert.Equal(t, 1, meds[1].Quantity)
	assert.Nil(t, meds[0].ExpiryDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicineRepoPG_Decrement(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE medicine SET quantity = quantity - ").
		WithArgs(id, 6).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE medicine SET quantity = quantity - ").
		WithArgs(id, 6).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewMedicineRepo(mock)
	ok, err := repo.Decrement(context.Background(), id, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(context.Background(), id, 6)
	require.NoError(t, err)
	assert.False(t, ok, "a zero row count is a shortfall")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicineRepoPG_DeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM medicine").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewMedicineRepo(mock).Delete(context.Background(), id)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestMedicineRepoPG_DeleteReferenced(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM medicine").WithArgs(id).WillReturnError(&pgconn.PgError{Code: "23503"})

	err = NewMedicineRepo(mock).Delete(context.Background(), id)
	assert.True(t, db.IsForeignKeyViolation(err))
}

func TestMedicineRepoPG_ListFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	active := true
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%para%", "tablet", true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("lower.category.").
		WithArgs("%para%", "tablet", true, 20, 0).
		WillReturnRows(medicineRow(pgxmock.NewRows(medicineColumns), uuid.New(), "Paracetamol", 10))

	meds, total, err := NewMedicineRepo(mock).List(context.Background(),
		MedicineFilter{Query: "para", Category: "tablet", Active: &active}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, meds, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicineRepoPG_UpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	args := append([]any{id, "X"}, anyArgs(7)...)
	mock.ExpectQuery("UPDATE medicine SET").WithArgs(args...).WillReturnError(pgx.ErrNoRows)

	err = NewMedicineRepo(mock).Update(context.Background(), &Medicine{ID: id, MedicineName: "X"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

var prescriptionColumns = []string{"id", "bill_number", "patient_id", "subtotal", "tax", "total", "created_by", "created_at",
	"patient_code", "name", "age", "gender", "contact"}

var itemColumns = []string{"id", "prescription_id", "line_no", "medicine_id", "medicine_name", "dosage", "quantity", "unit_price", "line_total"}

func TestPrescriptionRepoPG_CreateInsertsItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rxID, patientID, medID := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO prescription ").
		WithArgs("PH-2025-001", patientID, 10.0, 0.0, 10.0, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(rxID, time.Now()))
	mock.ExpectQuery("INSERT INTO prescription_item").
		WithArgs(rxID, 1, medID, "Paracetamol", "1-0-1", 4, 2.5, 10.0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	p := &Prescription{
		BillNumber: "PH-2025-001",
		PatientID:  patientID,
		Subtotal:   10,
		Total:      10,
		Items: []PrescriptionItem{{
			LineNo: 1, MedicineID: medID, MedicineName: "Paracetamol", Dosage: "1-0-1",
			Quantity: 4, UnitPrice: 2.5, LineTotal: 10,
		}},
	}
	repo := NewPrescriptionRepo(mock)
	err = db.NewTxRunner(mock).InTx(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, p)
	})
	require.NoError(t, err)
	assert.Equal(t, rxID, p.ID)
	assert.NotEqual(t, uuid.Nil, p.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepoPG_GetByIDWithItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rxID, patientID := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM prescription p JOIN patient pt").
		WithArgs(rxID).
		WillReturnRows(pgxmock.NewRows(prescriptionColumns).
			AddRow(rxID, "PH-2025-007", patientID, 12.5, 0.0, 12.5, nil, time.Now(), "PAT-2025-003", "Asha", 42, "female", "900"))
	mock.ExpectQuery("FROM prescription_item WHERE prescription_id = ANY").
		WithArgs([]uuid.UUID{rxID}).
		WillReturnRows(pgxmock.NewRows(itemColumns).
			AddRow(uuid.New(), rxID, 1, uuid.New(), "Paracetamol", "", 5, 2.5, 12.5))

	p, err := NewPrescriptionRepo(mock).GetByID(context.Background(), rxID)
	require.NoError(t, err)
	assert.Equal(t, "PH-2025-007", p.BillNumber)
	require.NotNil(t, p.Patient)
	assert.Equal(t, patientID, p.Patient.ID)
	assert.Equal(t, "Asha", p.Patient.Name)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 12.5, p.Items[0].LineTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepoPG_SearchByBillNumberPrefix(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("PH-2025-0%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("p.bill_number ILIKE").
		WithArgs("PH-2025-0%", 20, 0).
		WillReturnRows(pgxmock.NewRows(prescriptionColumns))

	ps, total, err := NewPrescriptionRepo(mock).SearchByBillNumber(context.Background(), "PH-2025-0", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, ps)
	assert.NoError(t, mock.ExpectationsWereMet())
}
