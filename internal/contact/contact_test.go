package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/db"
	"portfolio-backend/internal/observability"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) NotifyContact(_ context.Context, name, email, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, name+"|"+email+"|"+message)
	return n.err
}

func newTestHandler(t *testing.T, notifier Notifier, logs *bytes.Buffer) (http.Handler, *Repository) {
	t.Helper()
	database, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database)
	h := NewHandler(repo, notifier, observability.NewLoggerWithOutput(logs))

	r := chi.NewRouter()
	r.Post("/contact", h.Submit)
	r.Get("/contact", h.List)
	r.Patch("/contact/{id}", h.MarkAsRead)
	return r, repo
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmit(t *testing.T) {
	notifier := &recordingNotifier{}
	router, _ := newTestHandler(t, notifier, &bytes.Buffer{})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "valid", body: `{"name":"Ada","email":"ada@example.com","message":"Hello there"}`, wantCode: http.StatusCreated},
		{name: "invalid email", body: `{"name":"Ada","email":"nope","message":"Hello"}`, wantCode: http.StatusBadRequest},
		{name: "blank message", body: `{"name":"Ada","email":"ada@example.com","message":"   "}`, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{"name":`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, http.MethodPost, "/contact", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}

	assert.Equal(t, []string{"Ada|ada@example.com|Hello there"}, notifier.calls)
}

func TestSubmitResponseShape(t *testing.T) {
	router, _ := newTestHandler(t, nil, &bytes.Buffer{})

	rr := serve(router, http.MethodPost, "/contact", `{"name":"Ada","email":"ada@example.com","message":"Hi"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var body struct {
		Message string  `json:"message"`
		Contact Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Message submitted successfully", body.Message)
	assert.NotEmpty(t, body.Contact.ID)
	assert.False(t, body.Contact.IsRead)
}

func TestSubmitSurvivesNotifierFailure(t *testing.T) {
	logs := &bytes.Buffer{}
	router, repo := newTestHandler(t, &recordingNotifier{err: errors.New("smtp down")}, logs)

	rr := serve(router, http.MethodPost, "/contact", `{"name":"Ada","email":"ada@example.com","message":"Hi"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, logs.String(), "contact_notification_failed")

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestListAndMarkAsRead(t *testing.T) {
	router, repo := newTestHandler(t, nil, &bytes.Buffer{})
	ctx := context.Background()

	older, err := repo.Create(ctx, "First", "first@example.com", "one")
	require.NoError(t, err)
	newer, err := repo.Create(ctx, "Second", "second@example.com", "two")
	require.NoError(t, err)

	rr := serve(router, http.MethodGet, "/contact", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []Contact
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, newer.ID, listed[0].ID)
	assert.Equal(t, older.ID, listed[1].ID)

	rr = serve(router, http.MethodPatch, "/contact/"+older.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var marked Contact
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &marked))
	assert.True(t, marked.IsRead)

	rr = serve(router, http.MethodPatch, "/contact/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Contact message not found"}`, rr.Body.String())
}
