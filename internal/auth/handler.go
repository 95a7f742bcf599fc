package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
)

const maxJSONBodyBytes = 1 << 20

var validate = validator.New()

type Handler struct {
	service *Service
	cookies CookiePolicy
}

func NewHandler(service *Service, cookies CookiePolicy) *Handler {
	return &Handler{service: service, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=200"`
}

type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.cookies.SetTokens(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token")
		return
	}

	pair, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if isAuthFailure(err) {
			writeError(w, http.StatusUnauthorized, "Failed to refresh tokens")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh tokens")
		return
	}

	h.cookies.SetTokens(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens refreshed"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
		return
	}

	if err := h.service.Logout(r.Context(), adminID); err != nil {
		if isAuthFailure(err) {
			h.cookies.Clear(w)
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
		return
	}

	admin, err := h.service.Admin(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load admin")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{ID: admin.ID, Email: admin.Email})
}

func isAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrAdminNotFound) ||
		errors.Is(err, ErrInvalidToken)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
