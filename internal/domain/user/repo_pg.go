package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hms/hms/internal/platform/apierror"
	"github.com/hms/hms/internal/platform/db"
)

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

const userCols = `id, username, password_hash, full_name, role, active, created_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO app_user (username, password_hash, full_name, role, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		u.Username, u.PasswordHash, u.FullName, u.Role, u.Active,
	).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apierror.Conflict("username %q is already taken", u.Username)
	}
	if err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE lower(username) = lower($1)`, username))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("user count: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+userCols+` FROM app_user ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &u, nil
}
