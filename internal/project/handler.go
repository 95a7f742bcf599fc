package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
)

const (
	maxJSONBodyBytes   = 1 << 20
	maxUploadBodyBytes = 25 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource string) (string, error)
}

type Handler struct {
	repo     *Repository
	uploader ImageUploader
}

// NewHandler wires the project endpoints. A nil uploader makes the image
// upload endpoint echo its input.
func NewHandler(repo *Repository, uploader ImageUploader) *Handler {
	return &Handler{repo: repo, uploader: uploader}
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) ListAllProjects(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, includeDrafts bool) {
	projects, err := h.repo.List(r.Context(), includeDrafts)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetPublishedBySlug(r.Context(), strings.ToLower(chi.URLParam(r, "slug")))
	if err != nil {
		h.writeRepoError(w, err, "failed to fetch project")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var input ProjectInput
	if !decodeBody(w, r, &input) || !prepareInput(w, &input) {
		return
	}

	p, err := h.repo.Create(r.Context(), input)
	if err != nil {
		h.writeRepoError(w, err, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// UpdateProject applies the body on top of the stored project, so omitted
// fields keep their values.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err, "failed to update project")
		return
	}

	input := current.Input()
	if !decodeBody(w, r, &input) || !prepareInput(w, &input) {
		return
	}

	p, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		h.writeRepoError(w, err, "failed to update project")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err, "failed to delete project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

func (h *Handler) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.ToggleFeatured(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, err, "failed to toggle featured")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

type uploadImagesRequest struct {
	Images json.RawMessage `json:"images"`
}

func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)

	var body uploadImagesRequest
	var images []string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || json.Unmarshal(body.Images, &images) != nil || images == nil {
		writeError(w, http.StatusBadRequest, "images must be an array of base64 strings")
		return
	}

	if h.uploader == nil {
		writeJSON(w, http.StatusOK, images)
		return
	}

	urls := make([]string, 0, len(images))
	for _, image := range images {
		url, err := h.uploader.UploadImage(r.Context(), image)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusBadGateway, "failed to upload images")
			return
		}
		urls = append(urls, url)
	}

	writeJSON(w, http.StatusOK, urls)
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, ErrSlugTaken):
		writeError(w, http.StatusConflict, "Project slug already exists")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeBody ignores unknown fields: the admin form posts fullDescription and
// edits echo back id and timestamps from a previous GET.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func prepareInput(w http.ResponseWriter, input *ProjectInput) bool {
	input.Title = strings.TrimSpace(input.Title)
	input.ShortDescription = strings.TrimSpace(input.ShortDescription)
	input.GithubURL = strings.TrimSpace(input.GithubURL)
	input.LiveURL = strings.TrimSpace(input.LiveURL)

	source := strings.TrimSpace(input.Slug)
	if source == "" {
		source = input.Title
	}
	input.Slug = slug.Make(source)

	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	if input.Slug == "" {
		writeError(w, http.StatusBadRequest, "slug is invalid")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return errs[0].Field() + " is invalid"
	}
	return "invalid project"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
