package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	intconfig "busease/internal/config"
	intdb "busease/internal/db"
	"busease/internal/domain"
	"busease/internal/domain/models"
)

type UserRepo struct {
	DB intdb.DBTX
}

func (r UserRepo) db() intdb.DBTX {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const userColumns = `id, username, email, phone, img, password_hash, is_admin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.Img, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r UserRepo) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO users (username, email, phone, img, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.Phone, u.Img, u.PasswordHash, u.IsAdmin, now, now)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "user", Code: domain.CodeDuplicate, Msg: "Username or email already exists", Err: err}
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = domain.ID(id)
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r UserRepo) GetUser(ctx context.Context, id domain.ID) (models.User, error) {
	u, err := scanUser(r.db().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, userNotFound(err)
	}
	return u, err
}

func (r UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(r.db().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, userNotFound(err)
	}
	return u, err
}

func (r UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser does not report missing rows; MySQL counts unchanged rows as unaffected.
func (r UserRepo) UpdateUser(ctx context.Context, id domain.ID, upd models.UserUpdate) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Img != nil {
		add("img", *upd.Img)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.IsAdmin != nil {
		add("is_admin", *upd.IsAdmin)
	}
	add("updated_at", time.Now())
	args = append(args, id)

	_, err := r.db().ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "user", Code: domain.CodeDuplicate, Msg: "Username or email already exists", Err: err}
		}
		return err
	}
	return nil
}

func (r UserRepo) DeleteUser(ctx context.Context, id domain.ID) error {
	res, err := r.db().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return userNotFound(nil)
	}
	return nil
}
