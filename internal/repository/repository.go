package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"user-service/internal/entity"
	"user-service/internal/store"
)

var ErrNotFound = errors.New("user not found")

const userColumns = `id, name, email, created_at, updated_at`

type UserRepository struct {
	db *store.Store
}

func NewUserRepository(db *store.Store) *UserRepository {
	return &UserRepository{db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*entity.User, error) {
	var (
		user               entity.User
		createdAt, updated store.Time
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &createdAt, &updated); err != nil {
		return nil, err
	}
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updated.Time
	return &user, nil
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", where, err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// FindAll returns one page of users, newest first.
func (r *UserRepository) FindAll(ctx context.Context, limit, offset int) ([]entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []entity.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// Create inserts a user and returns the stored row. A duplicate email is
// reported as the store's unique violation.
func (r *UserRepository) Create(ctx context.Context, name, email string) (*entity.User, error) {
	res, err := r.db.Exec(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return r.FindByID(ctx, res.LastInsertID)
}

// Update sets the non-nil fields of req and bumps updated_at.
func (r *UserRepository) Update(ctx context.Context, id int64, req entity.UpdateUserRequest) (*entity.User, error) {
	var (
		sets []string
		args []any
	)
	if req.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *req.Email)
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.db.Exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check user %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
