package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/contact"
	"portfolio-backend/internal/db"
	"portfolio-backend/internal/observability"
)

func seedContacts(t *testing.T) *contact.Repository {
	t.Helper()
	database, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := contact.NewRepository(database)
	ctx := context.Background()
	for i, name := range []string{"read-1", "read-2", "unread"} {
		c, err := repo.Create(ctx, name, "someone@example.com", "hello")
		require.NoError(t, err)
		if i < 2 {
			_, err = repo.MarkAsRead(ctx, c.ID)
			require.NoError(t, err)
		}
	}
	return repo
}

func newHandler(repo ContactPurger, secret string, batch int) (*CleanupHandler, *bytes.Buffer) {
	var logs bytes.Buffer
	h := NewCleanupHandler(repo, observability.NewLoggerWithOutput(&logs), secret, 180*24*time.Hour, batch)
	h.now = func() time.Time { return time.Now().Add(365 * 24 * time.Hour) }
	return h, &logs
}

func cleanupRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCleanupDisabledWithoutSecret(t *testing.T) {
	h, _ := newHandler(seedContacts(t), "", 10)
	rec := httptest.NewRecorder()
	h.Handle(rec, cleanupRequest("anything"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupRejectsWrongSecret(t *testing.T) {
	h, _ := newHandler(seedContacts(t), "cron-secret", 10)

	rec := httptest.NewRecorder()
	h.Handle(rec, cleanupRequest("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Handle(rec, cleanupRequest(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCleanupPurgesOnlyReadMessagesInBatches(t *testing.T) {
	repo := seedContacts(t)
	h, logs := newHandler(repo, "cron-secret", 1)

	rec := httptest.NewRecorder()
	h.Handle(rec, cleanupRequest("cron-secret"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string        `json:"status"`
		Result cleanupResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.EqualValues(t, 1, body.Result.DeletedContacts)
	assert.Contains(t, logs.String(), "contact_cleanup_completed")

	rec = httptest.NewRecorder()
	h.Handle(rec, cleanupRequest("cron-secret"))
	require.Equal(t, http.StatusOK, rec.Code)

	remaining, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "unread", remaining[0].Name)
}

func TestCleanupKeepsRecentMessages(t *testing.T) {
	repo := seedContacts(t)
	h, _ := newHandler(repo, "cron-secret", 10)
	h.now = time.Now

	rec := httptest.NewRecorder()
	h.Handle(rec, cleanupRequest("cron-secret"))
	require.Equal(t, http.StatusOK, rec.Code)

	remaining, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}
