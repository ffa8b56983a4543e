package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"secretsManagement/internal/access"
	"secretsManagement/models"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

// fail writes err with its mapped status. Internal errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFromError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, code, http.StatusText(code))
		return
	}
	respondWithError(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondWithData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	c := credentials(r.Context())
	u, err := h.svc.Enroll(r.Context(), c.Username, c.Password, req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	role := h.svc.AuthenticateAndGetRole(r.Context(), req.Username, req.Password)
	if role == "" {
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondWithData(w, http.StatusOK, loginResponse{Username: req.Username, Role: role})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	c := credentials(r.Context())
	users, err := h.svc.UsersByRole(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, users)
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	c := credentials(r.Context())
	logs, err := h.svc.AuditLogsByRole(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, logs)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	c := credentials(r.Context())
	stats, err := h.svc.Statistics(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, stats)
}

func (h *Handler) createSecret(w http.ResponseWriter, r *http.Request) {
	var req access.NewSecret
	if !decode(w, r, &req) {
		return
	}
	c := credentials(r.Context())
	sec, err := h.svc.CreateSecret(r.Context(), c.Username, c.Password, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, sec)
}

func (h *Handler) listSecrets(w http.ResponseWriter, r *http.Request) {
	c := credentials(r.Context())
	secrets, err := h.svc.SecretsByRole(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, secrets)
}

func (h *Handler) searchSecrets(w http.ResponseWriter, r *http.Request) {
	c := credentials(r.Context())
	secrets, err := h.svc.SearchSecretsByRole(r.Context(), c.Username, c.Password, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, secrets)
}

func (h *Handler) getSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c := credentials(r.Context())
	sec, err := h.svc.SecretByID(r.Context(), c.Username, c.Password, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, sec)
}

func (h *Handler) updateSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.SecretPatch
	if !decode(w, r, &patch) {
		return
	}
	c := credentials(r.Context())
	sec, err := h.svc.UpdateSecret(r.Context(), c.Username, c.Password, id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, sec)
}

func (h *Handler) deleteSecret(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c := credentials(r.Context())
	deleted, err := h.svc.DeleteSecret(r.Context(), c.Username, c.Password, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, deleteResponse{Deleted: deleted})
}
