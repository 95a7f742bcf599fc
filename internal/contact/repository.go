package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("contact message not found")

type Contact struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name, email, message string) (Contact, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Contact{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	c := Contact{
		ID:        id.String(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := r.db.NamedExecContext(ctx, `
		INSERT INTO contacts (id, name, email, message, is_read, created_at)
		VALUES (:id, :name, :email, :message, :is_read, :created_at)
	`, c); err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	return c, nil
}

func (r *Repository) List(ctx context.Context) ([]Contact, error) {
	contacts := make([]Contact, 0)
	if err := r.db.SelectContext(ctx, &contacts, `
		SELECT id, name, email, message, is_read, created_at
		FROM contacts
		ORDER BY created_at DESC
	`); err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	return contacts, nil
}

func (r *Repository) MarkAsRead(ctx context.Context, id string) (Contact, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE contacts SET is_read = ? WHERE id = ?`), true, id)
	if err != nil {
		return Contact{}, fmt.Errorf("mark contact read: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return Contact{}, fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return Contact{}, ErrNotFound
	}

	var c Contact
	if err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT id, name, email, message, is_read, created_at
		FROM contacts
		WHERE id = ?
	`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("query contact: %w", err)
	}

	return c, nil
}

// PurgeRead deletes up to limit read messages created before cutoff and
// reports how many rows went away. Unread messages are never purged.
func (r *Repository) PurgeRead(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM contacts
		WHERE id IN (
			SELECT id FROM contacts
			WHERE is_read = ? AND created_at < ?
			ORDER BY created_at
			LIMIT ?
		)
	`), true, cutoff.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("purge read contacts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
