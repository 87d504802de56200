package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/scs-backend/scs/internal/common"
	"github.com/scs-backend/scs/internal/logging"
	"github.com/scs-backend/scs/internal/server/users"
	"github.com/scs-backend/scs/internal/server/vault"
)

// Handler exposes the vault over HTTP. It only parses request fields and
// maps errors to status codes; all validation, authentication and path
// safety live in the users and vault services.
type Handler struct {
	users          *users.Service
	vault          *vault.Service
	maxUploadBytes int64
	logger         logging.Logger
}

func NewHandler(us *users.Service, vs *vault.Service, maxUploadBytes int64, logger logging.Logger) *Handler {
	return &Handler{
		users:          us,
		vault:          vs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("module", "httpapi"),
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type registerRequest struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Salt         string `json:"salt"`
}

type loginRequest struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

type deleteRequest struct {
	Email        string `json:"email"`
	Filename     string `json:"filename"`
	PasswordHash string `json:"password_hash"`
}

// Register handles POST /api/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Invalid request body."})
		return
	}

	rec, err := h.users.Register(r.Context(),
		req.Email, strings.TrimSpace(req.PasswordHash), strings.TrimSpace(req.Salt))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Account created successfully.",
		"salt":    rec.ClientSalt,
	})
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Invalid request body."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.PasswordHash) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Email and password are required."})
		return
	}

	rec, err := h.users.Login(r.Context(), req.Email, strings.TrimSpace(req.PasswordHash))
	if err != nil {
		if errors.Is(err, common.ErrAuthFailure) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{"Invalid email or password."})
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful.",
		"email":   rec.Email,
		"salt":    rec.ClientSalt,
	})
}

// Upload handles POST /api/upload (multipart form).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// second barrier behind the Content-Length middleware, for chunked
	// bodies that declare no length
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+sizeLimitOverhead)

	email := r.FormValue("email")
	passwordHash := strings.TrimSpace(r.FormValue("password_hash"))

	var meta vault.UploadMetadata
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Invalid metadata format."})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Encrypted file is required."})
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{"File too large. Maximum size is 50 MB."})
		return
	}

	info, err := h.vault.Upload(r.Context(), email, passwordHash, meta, blob)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "File uploaded securely.",
		"filename": info.StoredName,
		"size":     info.Size,
	})
}

// Download handles GET /api/download: it returns the sidecar metadata plus
// the URL of the raw-bytes endpoint. The server never transforms the blob.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	filename := r.URL.Query().Get("filename")
	if strings.TrimSpace(email) == "" || strings.TrimSpace(filename) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Email and filename are required."})
		return
	}

	meta, ref, err := h.vault.Download(r.Context(), email, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": meta,
		"download_url": fmt.Sprintf("/api/download/blob?email=%s&filename=%s",
			url.QueryEscape(users.NormalizeEmail(email)), url.QueryEscape(ref.StoredName)),
	})
}

// DownloadBlob handles GET /api/download/blob: the raw ciphertext as an
// attachment.
func (h *Handler) DownloadBlob(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	filename := r.URL.Query().Get("filename")

	rc, ref, err := h.vault.OpenBlob(r.Context(), email, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.StoredName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", ref.Size))

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "streaming blob interrupted", "error", err.Error())
	}
}

// ListFiles handles GET /api/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	files, err := h.vault.List(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Delete handles DELETE /api/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Invalid request body."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Filename) == "" ||
		strings.TrimSpace(req.PasswordHash) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"Email, filename, and password are required."})
		return
	}

	err := h.vault.Delete(r.Context(), req.Email, strings.TrimSpace(req.PasswordHash), req.Filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "File deleted successfully."})
}

// writeError maps service errors onto HTTP statuses. Path traversal is
// reported like any other invalid input but logged as a security event.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrPathTraversal):
		h.logger.Warn(r.Context(), "rejected traversal attempt", "path", r.URL.Path)
		writeJSON(w, http.StatusBadRequest, errorResponse{"Invalid filename."})
	case errors.Is(err, common.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{firstDetail(err)})
	case errors.Is(err, common.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{"An account with this email already exists."})
	case errors.Is(err, common.ErrAuthFailure):
		writeJSON(w, http.StatusUnauthorized, errorResponse{"Authentication failed."})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{"File not found."})
	case errors.Is(err, common.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{"File too large. Maximum size is 50 MB."})
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{"Internal server error."})
	}
}

// firstDetail extracts the human-readable part of a wrapped validation
// error, e.g. "invalid input: invalid email format" -> "Invalid email format."
func firstDetail(err error) string {
	msg := err.Error()
	if after, ok := strings.CutPrefix(msg, common.ErrInvalidInput.Error()+": "); ok {
		msg = after
	}
	if msg == "" || msg == common.ErrInvalidInput.Error() {
		return "Invalid request."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
