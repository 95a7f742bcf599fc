package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/db"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	database, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database)
}

func sampleInput(title string) ProjectInput {
	return ProjectInput{
		Title:            title,
		Slug:             title,
		ShortDescription: "A short description",
		TechStack:        TechStack{{Name: "Go", Icon: "go.svg"}},
		Images:           StringList{"https://img.example.com/a.png"},
	}
}

func TestRepositoryCreateAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, sampleInput("first"))
	require.NoError(t, err)
	assert.Equal(t, TypeBasic, first.ProjectType)
	assert.Equal(t, StatusPublished, first.Status)

	featured := sampleInput("featured")
	featured.Featured = true
	_, err = repo.Create(ctx, featured)
	require.NoError(t, err)

	draft := sampleInput("draft")
	draft.Status = StatusDraft
	_, err = repo.Create(ctx, draft)
	require.NoError(t, err)

	latest, err := repo.Create(ctx, sampleInput("latest"))
	require.NoError(t, err)

	public, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 3)
	assert.Equal(t, "featured", public[0].Slug)
	assert.Equal(t, latest.ID, public[1].ID)
	assert.Equal(t, first.ID, public[2].ID)
	assert.Equal(t, TechStack{{Name: "Go", Icon: "go.svg"}}, public[2].TechStack)
	assert.Equal(t, StringList{"https://img.example.com/a.png"}, public[2].Images)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = repo.GetPublishedBySlug(ctx, "draft")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Create(ctx, sampleInput("first"))
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestRepositoryUpdateDeleteToggle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, sampleInput("alpha"))
	require.NoError(t, err)
	b, err := repo.Create(ctx, sampleInput("beta"))
	require.NoError(t, err)

	input := a.Input()
	input.Title = "Alpha v2"
	updated, err := repo.Update(ctx, a.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Alpha v2", updated.Title)
	assert.Equal(t, a.CreatedAt.Unix(), updated.CreatedAt.Unix())

	clash := b.Input()
	clash.Slug = "alpha"
	_, err = repo.Update(ctx, b.ID, clash)
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = repo.Update(ctx, "missing", input)
	assert.ErrorIs(t, err, ErrNotFound)

	toggled, err := repo.ToggleFeatured(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Featured)
	toggled, err = repo.ToggleFeatured(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Featured)

	_, err = repo.ToggleFeatured(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), ErrNotFound)
}

func TestRepositoryMapsConcurrentSlugInsertToConflict(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	existing, err := repo.Create(ctx, sampleInput("racy"))
	require.NoError(t, err)

	tx, err := repo.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	// A writer that passed ensureSlugFree before the other one committed.
	loser := existing
	loser.ID = "second-writer"
	err = insertProject(ctx, tx, loser)
	assert.ErrorIs(t, err, ErrSlugTaken)
}

type stubUploader struct {
	fail bool
}

func (s stubUploader) UploadImage(_ context.Context, source string) (string, error) {
	if s.fail {
		return "", errors.New("upstream down")
	}
	return "https://cdn.example.com/" + source, nil
}

func newTestRouter(t *testing.T, uploader ImageUploader) (http.Handler, *Repository) {
	t.Helper()
	repo := newTestRepository(t)
	h := NewHandler(repo, uploader)

	r := chi.NewRouter()
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/admin/all", h.ListAllProjects)
	r.Get("/projects/{slug}", h.GetProject)
	r.Post("/projects", h.CreateProject)
	r.Post("/projects/upload-images", h.UploadImages)
	r.Put("/projects/{id}", h.UpdateProject)
	r.Delete("/projects/{id}", h.DeleteProject)
	r.Patch("/projects/{id}/toggle-featured", h.ToggleFeatured)
	return r, repo
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateProject(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantSlug string
	}{
		{name: "slug from title", body: `{"title":"My Great App","shortDescription":"desc"}`, wantCode: http.StatusCreated, wantSlug: "my-great-app"},
		{name: "explicit slug lowercased", body: `{"title":"Other","slug":"Custom Slug","shortDescription":"desc","projectType":"case-study"}`, wantCode: http.StatusCreated, wantSlug: "custom-slug"},
		{name: "duplicate slug", body: `{"title":"My Great App","shortDescription":"desc"}`, wantCode: http.StatusConflict},
		{name: "missing title", body: `{"shortDescription":"desc"}`, wantCode: http.StatusBadRequest},
		{name: "bad project type", body: `{"title":"X","shortDescription":"desc","projectType":"epic"}`, wantCode: http.StatusBadRequest},
		{name: "bad url", body: `{"title":"Y","shortDescription":"desc","githubUrl":"not a url"}`, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{"title":`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, http.MethodPost, "/projects", tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantSlug != "" {
				var p Project
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
				assert.Equal(t, tt.wantSlug, p.Slug)
				assert.Equal(t, TechStack{}, p.TechStack)
			}
		})
	}

	rr := serve(router, http.MethodPost, "/projects", `{"title":"Z","shortDescription":"desc"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(router, http.MethodPost, "/projects", `{"title":"Dup","slug":"z","shortDescription":"desc"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"Project slug already exists"}`, rr.Body.String())
}

func TestHandlerPublicReads(t *testing.T) {
	router, repo := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleInput("visible"))
	require.NoError(t, err)
	hidden := sampleInput("hidden")
	hidden.Status = StatusDraft
	_, err = repo.Create(ctx, hidden)
	require.NoError(t, err)

	rr := serve(router, http.MethodGet, "/projects", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "visible", listed[0].Slug)

	rr = serve(router, http.MethodGet, "/projects/admin/all", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)

	rr = serve(router, http.MethodGet, "/projects/VISIBLE", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, http.MethodGet, "/projects/hidden", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Project not found"}`, rr.Body.String())
}

func TestHandlerUpdateIsPartial(t *testing.T) {
	router, repo := newTestRouter(t, nil)
	ctx := context.Background()

	p, err := repo.Create(ctx, sampleInput("partial"))
	require.NoError(t, err)

	rr := serve(router, http.MethodPut, "/projects/"+p.ID, `{"overview":"new overview"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "new overview", updated.Overview)
	assert.Equal(t, p.Title, updated.Title)
	assert.Equal(t, p.Slug, updated.Slug)
	assert.Equal(t, p.TechStack, updated.TechStack)

	rr = serve(router, http.MethodPut, "/projects/missing", `{"overview":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, http.MethodPatch, "/projects/"+p.ID+"/toggle-featured", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.True(t, updated.Featured)

	rr = serve(router, http.MethodDelete, "/projects/"+p.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Project deleted"}`, rr.Body.String())

	rr = serve(router, http.MethodDelete, "/projects/"+p.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerAcceptsAdminFormPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	form := `{
		"title": "Portfolio API",
		"slug": "",
		"shortDescription": "Backend for the portfolio",
		"fullDescription": "Longer text kept by the form only",
		"overview": "", "problemStatement": "", "solutionApproach": "",
		"architectureDetails": "", "challenges": "", "results": "",
		"role": "", "category": "", "timeline": "",
		"projectType": "basic",
		"techStack": [],
		"images": [],
		"githubUrl": "",
		"liveUrl": "",
		"featured": false,
		"status": "draft"
	}`
	rr := serve(router, http.MethodPost, "/projects", form)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "portfolio-api", created.Slug)
	assert.Equal(t, StatusDraft, created.Status)

	rr = serve(router, http.MethodGet, "/projects/admin/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	edited := listed[0]
	edited["title"] = "Portfolio API v2"
	body, err := json.Marshal(edited)
	require.NoError(t, err)

	rr = serve(router, http.MethodPut, "/projects/"+created.ID, string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated Project
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Portfolio API v2", updated.Title)
	assert.Equal(t, "portfolio-api", updated.Slug)
}

func TestHandlerUploadImages(t *testing.T) {
	tests := []struct {
		name     string
		uploader ImageUploader
		body     string
		wantCode int
		wantBody string
	}{
		{name: "echo without uploader", body: `{"images":["data:a","data:b"]}`, wantCode: http.StatusOK, wantBody: `["data:a","data:b"]`},
		{name: "uploaded", uploader: stubUploader{}, body: `{"images":["a"]}`, wantCode: http.StatusOK, wantBody: `["https://cdn.example.com/a"]`},
		{name: "empty list", body: `{"images":[]}`, wantCode: http.StatusOK, wantBody: `[]`},
		{name: "not an array", body: `{"images":"a"}`, wantCode: http.StatusBadRequest},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "upload failure", uploader: stubUploader{fail: true}, body: `{"images":["a"]}`, wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, tt.uploader)
			rr := serve(router, http.MethodPost, "/projects/upload-images", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}
