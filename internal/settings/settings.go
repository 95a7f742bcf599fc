package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

const (
	maxJSONBodyBytes = 256 << 10
	maxKeyLength     = 100
	maxDescLength    = 500
)

var ErrNotFound = errors.New("setting not found")

type Setting struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description string    `db:"description" json:"description"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Entries returns every setting with its description, ordered by key.
func (r *Repository) Entries(ctx context.Context) ([]Setting, error) {
	rows := []Setting{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value, description, updated_at FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	return rows, nil
}

func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.Entries(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// Upsert writes every pair in one transaction.
func (r *Repository) Upsert(ctx context.Context, values map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := tx.Rebind(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, query, key, value, now); err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Put upserts a single setting together with its description.
func (r *Repository) Put(ctx context.Context, key, value, description string) (Setting, error) {
	setting := Setting{Key: key, Value: value, Description: description, UpdatedAt: time.Now().UTC()}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (:key, :value, :description, :updated_at)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value, description = excluded.description, updated_at = excluded.updated_at
	`, setting)
	if err != nil {
		return Setting{}, fmt.Errorf("put setting %s: %w", key, err)
	}
	return setting, nil
}

func (r *Repository) Get(ctx context.Context, key string) (Setting, error) {
	var setting Setting
	err := r.db.GetContext(ctx, &setting, r.db.Rebind(`SELECT key, value, description, updated_at FROM settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	if err != nil {
		return Setting{}, fmt.Errorf("query setting %s: %w", key, err)
	}
	return setting, nil
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	values, err := h.repo.All(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch settings")
		return
	}

	writeJSON(w, http.StatusOK, values)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "settings must be a JSON object")
		return
	}

	values := make(map[string]string, len(body))
	for key, raw := range body {
		key = strings.TrimSpace(key)
		if key == "" || len(key) > maxKeyLength {
			writeError(w, http.StatusBadRequest, "setting keys must be 1 to 100 characters")
			return
		}
		values[key] = stringify(raw)
	}

	if err := h.repo.Upsert(r.Context(), values); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	h.Get(w, r)
}

// List returns the full entries, descriptions included, for the admin screen.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.Entries(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch settings")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

type putRequest struct {
	Value       any     `json:"value"`
	Description *string `json:"description"`
}

// Put writes one key. An omitted description keeps the stored one.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" || len(key) > maxKeyLength {
		writeError(w, http.StatusBadRequest, "setting keys must be 1 to 100 characters")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body putRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	var description string
	if body.Description != nil {
		description = strings.TrimSpace(*body.Description)
	} else {
		current, err := h.repo.Get(r.Context(), key)
		switch {
		case err == nil:
			description = current.Description
		case !errors.Is(err, ErrNotFound):
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}
	}
	if len(description) > maxDescLength {
		writeError(w, http.StatusBadRequest, "description must be at most 500 characters")
		return
	}

	setting, err := h.repo.Put(r.Context(), key, stringify(body.Value), description)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// stringify stores strings verbatim and any other JSON value in its encoded
// form.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
