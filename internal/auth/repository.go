package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const adminColumns = `id, email, password_hash, refresh_token_hash, created_at, updated_at`

func (r *Repository) GetByEmail(ctx context.Context, email string) (Admin, error) {
	var admin Admin
	err := r.db.GetContext(ctx, &admin, r.db.Rebind(`SELECT `+adminColumns+` FROM admins WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Admin{}, ErrAdminNotFound
		}
		return Admin{}, fmt.Errorf("query admin by email: %w", err)
	}
	return admin, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Admin, error) {
	var admin Admin
	err := r.db.GetContext(ctx, &admin, r.db.Rebind(`SELECT `+adminColumns+` FROM admins WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Admin{}, ErrAdminNotFound
		}
		return Admin{}, fmt.Errorf("query admin by id: %w", err)
	}
	return admin, nil
}

// SetRefreshTokenHash overwrites the stored hash unconditionally. A nil hash
// ends the session.
func (r *Repository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE admins
		SET refresh_token_hash = ?, updated_at = ?
		WHERE id = ?
	`), nullString(hash), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update refresh token hash: %w", err)
	}
	return requireAffected(res)
}

// SwapRefreshTokenHash replaces the stored hash only while it still equals
// expected. It returns false when another rotation got there first.
func (r *Repository) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE admins
		SET refresh_token_hash = ?, updated_at = ?
		WHERE id = ? AND refresh_token_hash = ?
	`), next, time.Now().UTC(), id, expected)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token hash: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpsertAdmin creates the admin or resets the password of an existing one.
// A password reset also drops any active session.
func (r *Repository) UpsertAdmin(ctx context.Context, email, passwordHash string) (Admin, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Admin{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := false

	var admin Admin
	err = tx.GetContext(ctx, &admin, tx.Rebind(`SELECT `+adminColumns+` FROM admins WHERE email = ?`), email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		admin, err = insertAdmin(ctx, tx, email, passwordHash, now)
		if err != nil {
			return Admin{}, false, err
		}
		created = true
	case err != nil:
		return Admin{}, false, fmt.Errorf("select existing admin: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE admins
			SET password_hash = ?, refresh_token_hash = NULL, updated_at = ?
			WHERE id = ?
		`), passwordHash, now, admin.ID); err != nil {
			return Admin{}, false, fmt.Errorf("update admin: %w", err)
		}
		admin.PasswordHash = passwordHash
		admin.RefreshTokenHash = sql.NullString{}
		admin.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return Admin{}, false, fmt.Errorf("commit transaction: %w", err)
	}

	return admin, created, nil
}

// CreateAdmin inserts a new admin and reports false if the email is taken.
func (r *Repository) CreateAdmin(ctx context.Context, email, passwordHash string) (Admin, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Admin{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(1) FROM admins WHERE email = ?`), email); err != nil {
		return Admin{}, false, fmt.Errorf("count admins: %w", err)
	}
	if exists > 0 {
		return Admin{}, false, nil
	}

	admin, err := insertAdmin(ctx, tx, email, passwordHash, time.Now().UTC())
	if err != nil {
		return Admin{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return Admin{}, false, fmt.Errorf("commit transaction: %w", err)
	}

	return admin, true, nil
}

func insertAdmin(ctx context.Context, tx *sqlx.Tx, email, passwordHash string, now time.Time) (Admin, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Admin{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	admin := Admin{
		ID:           id.String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash, refresh_token_hash, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :refresh_token_hash, :created_at, :updated_at)
	`, admin); err != nil {
		return Admin{}, fmt.Errorf("insert admin: %w", err)
	}

	return admin, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
