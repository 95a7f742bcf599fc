package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"portfolio-backend/internal/observability"
)

type ContactPurger interface {
	PurgeRead(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// CleanupHandler is called by a scheduler to enforce the contact inbox
// retention. It is disabled (404) until a cron secret is configured.
type CleanupHandler struct {
	contacts   ContactPurger
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
	now        func() time.Time
}

func NewCleanupHandler(
	contacts ContactPurger,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		contacts:   contacts,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

type cleanupResult struct {
	DeletedContacts int64  `json:"deletedContacts"`
	Cutoff          string `json:"cutoff"`
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := h.now().UTC().Add(-h.retention)
	deleted, err := h.contacts.PurgeRead(r.Context(), cutoff, h.batchSize)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error("contact_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("contact_cleanup_completed", map[string]any{
		"deleted_contacts": deleted,
		"cutoff":           cutoff.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": cleanupResult{DeletedContacts: deleted, Cutoff: cutoff.Format(time.RFC3339)},
	})
}

func (h *CleanupHandler) authorized(r *http.Request) bool {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	token := strings.TrimSpace(parts[1])
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
