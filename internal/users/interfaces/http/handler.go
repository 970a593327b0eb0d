package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	apihttp "smarthome-cloud/internal/api/http"
	"smarthome-cloud/internal/audit"
	"smarthome-cloud/internal/auth"
	usersapp "smarthome-cloud/internal/users/application"
)

const routePrefix = "/api/users"

// Handler provides user endpoints: login and register are public, the
// rest sit behind the auth middleware.
type Handler struct {
	service     *usersapp.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *usersapp.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("users handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes /api/users, /api/users/login, /api/users/register and
// /api/users/{id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, routePrefix)
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case rest == "login":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleLogin(w, r)
	case rest == "register":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRegister(w, r)
	case strings.Contains(rest, "/"):
		apihttp.WriteFail(w, http.StatusNotFound, "not found")
	default:
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, rest)
		case http.MethodPatch:
			h.handleUpdate(w, r, rest)
		case http.MethodDelete:
			h.handleDelete(w, r, rest)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "Users fetched successfully", views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := h.service.Get(r.Context(), userID)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "User fetched successfully", view)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	body, err := readBody(r)
	if err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "read body error")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "Login successful", map[string]string{"token": token})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "read body error")
		return
	}
	view, err := h.service.Register(r.Context(), body)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusCreated, "User created successfully", nil)
	h.logAudit(r, "user.register", view.UserID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	body, err := readBody(r)
	if err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "read body error")
		return
	}
	if _, err := h.service.Update(r.Context(), userID, body); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "User updated successfully", nil)
	h.logAudit(r, "user.update", userID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.Delete(r.Context(), userID); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "User deleted successfully", nil)
	h.logAudit(r, "user.delete", userID)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string) {
	if h.auditLogger == nil {
		return
	}
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "user",
		ResourceID:   resourceID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("users: audit %s %s: %v", action, resourceID, err)
	}
}

func readBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
