package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	apihttp "smarthome-cloud/internal/api/http"
	"smarthome-cloud/internal/audit"
	"smarthome-cloud/internal/auth"
	devicesapp "smarthome-cloud/internal/devices/application"
)

const routePrefix = "/api/devices"

// Handler provides device CRUD endpoints.
type Handler struct {
	service     *devicesapp.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *devicesapp.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("devices handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes /api/devices and /api/devices/{id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, routePrefix)
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if strings.Contains(rest, "/") {
		apihttp.WriteFail(w, http.StatusNotFound, "not found")
		return
	}

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

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "Devices fetched successfully", list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, deviceID string) {
	device, err := h.service.Get(r.Context(), deviceID)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "Device fetched successfully", device)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "read body error")
		return
	}
	device, err := h.service.Create(r.Context(), body)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusCreated, "Device created successfully", device)
	h.logAudit(r, "device.create", device.DeviceID, body)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, deviceID string) {
	body, err := readBody(r)
	if err != nil {
		apihttp.WriteFail(w, http.StatusBadRequest, "read body error")
		return
	}
	device, err := h.service.Update(r.Context(), deviceID, body)
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, "Device updated successfully", device)
	h.logAudit(r, "device.update", deviceID, body)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, deviceID string) {
	if err := h.service.Delete(r.Context(), deviceID); err != nil {
		apihttp.WriteError(w, err)
		return
	}
	apihttp.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Device with ID %s deleted successfully", deviceID), nil)
	h.logAudit(r, "device.delete", deviceID, nil)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, payload []byte) {
	if h.auditLogger == nil {
		return
	}
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:         auth.UserIDFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  "device",
		ResourceID:    resourceID,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("devices: audit %s %s: %v", action, resourceID, err)
	}
}

func readBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
