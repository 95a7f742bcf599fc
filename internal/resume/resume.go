package resume

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
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxJSONBodyBytes = 15 << 20

var (
	ErrNotFound = errors.New("resume not found")
	validate    = validator.New()
)

type Resume struct {
	ID         string    `db:"id" json:"id"`
	FileURL    string    `db:"file_url" json:"fileUrl"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploadedAt"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Latest returns the newest resume, or nil when none is stored.
func (r *Repository) Latest(ctx context.Context) (*Resume, error) {
	var res Resume
	err := r.db.GetContext(ctx, &res, `SELECT id, file_url, uploaded_at FROM resumes ORDER BY uploaded_at DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest resume: %w", err)
	}
	return &res, nil
}

// Replace removes every stored resume and stores fileURL as the only one.
func (r *Repository) Replace(ctx context.Context, fileURL string) (Resume, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Resume{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	res := Resume{ID: id.String(), FileURL: fileURL, UploadedAt: time.Now().UTC()}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Resume{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resumes`); err != nil {
		return Resume{}, fmt.Errorf("clear resumes: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO resumes (id, file_url, uploaded_at)
		VALUES (:id, :file_url, :uploaded_at)
	`, res); err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Resume{}, fmt.Errorf("commit transaction: %w", err)
	}

	return res, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM resumes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type uploadRequest struct {
	Base64Data string `json:"base64Data" validate:"required"`
}

func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	res, err := h.repo.Latest(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch resume")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	body.Base64Data = strings.TrimSpace(body.Base64Data)
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "base64Data is required")
		return
	}

	res, err := h.repo.Replace(r.Context(), body.Base64Data)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to upload resume")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Resume not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete resume")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Resume deleted"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
