package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/db"
)

func TestRepoPG_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO app_user").
		WithArgs("asha", "hash", "Asha", "doctor", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))

	u := &User{Username: "asha", PasswordHash: "hash", FullName: "Asha", Role: "doctor", Active: true}
	require.NoError(t, NewRepo(mock).Create(context.Background(), u))
	assert.Equal(t, id, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_CreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO app_user").
		WithArgs("asha", "", "", "", false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "app_user_username_key"})

	err = NewRepo(mock).Create(context.Background(), &User{Username: "asha"})
	var cerr *apierror.ConflictError
	assert.True(t, errors.As(err, &cerr), "expected ConflictError, got %v", err)
}

func TestRepoPG_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM app_user WHERE lower").
		WithArgs("Asha").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "full_name", "role", "active", "created_at"}).
			AddRow(id, "asha", "hash", "Asha", "doctor", true, time.Now()))

	u, err := NewRepo(mock).GetByUsername(context.Background(), "Asha")
	require.NoError(t, err)
	assert.Equal(t, "asha", u.Username)
}

func TestRepoPG_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM app_user WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewRepo(mock).GetByID(context.Background(), id)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRepoPG_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("ORDER BY username").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "full_name", "role", "active", "created_at"}).
			AddRow(uuid.New(), "a", "h", "A", "admin", true, time.Now()).
			AddRow(uuid.New(), "b", "h", "B", "nurse", false, time.Now()))

	users, total, err := NewRepo(mock).List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
