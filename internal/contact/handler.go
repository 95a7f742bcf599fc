package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"portfolio-backend/internal/observability"
)

const maxJSONBodyBytes = 64 << 10

var validate = validator.New()

// Notifier tells the site owner about a new message.
type Notifier interface {
	NotifyContact(ctx context.Context, name, email, message string) error
}

type Handler struct {
	repo     *Repository
	notifier Notifier
	logger   *observability.Logger
}

func NewHandler(repo *Repository, notifier Notifier, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, notifier: notifier, logger: logger}
}

type submitRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"required,max=5000"`
}

type submitResponse struct {
	Message string  `json:"message"`
	Contact Contact `json:"contact"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body submitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	body.Message = strings.TrimSpace(body.Message)
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "name, email and message are required")
		return
	}

	saved, err := h.repo.Create(r.Context(), body.Name, body.Email, body.Message)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to submit message")
		return
	}

	h.notify(r.Context(), saved)

	writeJSON(w, http.StatusCreated, submitResponse{Message: "Message submitted successfully", Contact: saved})
}

// notify never fails the request; the message is already stored.
func (h *Handler) notify(ctx context.Context, c Contact) {
	if h.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := h.notifier.NotifyContact(ctx, c.Name, c.Email, c.Message); err != nil {
		sentry.CaptureException(err)
		if h.logger != nil {
			h.logger.Warn("contact_notification_failed", map[string]any{
				"contact_id": c.ID,
				"error":      err.Error(),
			})
		}
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.MarkAsRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Contact message not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update message")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
