package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, phone, name, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) loadRoles(ctx context.Context, u *User) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT role FROM user_role WHERE user_id = $1 ORDER BY role`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return err
		}
		u.Roles = append(u.Roles, auth.Role(role))
	}
	return rows.Err()
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, phone, name, password_hash)
		VALUES ($1, $2, $3, $4)`,
		u.ID, u.Phone, u.Name, u.PasswordHash)
	if err != nil {
		return err
	}
	return r.SetRoles(ctx, u.ID, roleStrings(u.Roles))
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return u, r.loadRoles(ctx, u)
}

func (r *userRepoPG) GetByPhone(ctx context.Context, phone string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		return nil, err
	}
	return u, r.loadRoles(ctx, u)
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, u := range items {
		if err := r.loadRoles(ctx, u); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *userRepoPG) SetRoles(ctx context.Context, id uuid.UUID, roles []string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_role WHERE user_id = $1`, id); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO user_role (user_id, role) VALUES ($1, $2)`, id, role); err != nil {
			return err
		}
	}
	return nil
}

func roleStrings(roles []auth.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
