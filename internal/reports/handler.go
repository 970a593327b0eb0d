package reports

import (
	"errors"
	"net/http"

	apihttp "smarthome-cloud/internal/api/http"
	devicesapp "smarthome-cloud/internal/devices/application"
)

// ExportHandler serves admin inventory exports. The device list comes
// through the resource service, so exports ride the same cache-aside
// path as API reads.
type ExportHandler struct {
	devices *devicesapp.Service
}

// NewExportHandler constructs an export handler.
func NewExportHandler(devices *devicesapp.Service) (*ExportHandler, error) {
	if devices == nil {
		return nil, errors.New("reports handler: nil device service")
	}
	return &ExportHandler{devices: devices}, nil
}

// ServeHTTP handles GET /api/exports/devices.{csv,xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	list, err := h.devices.List(r.Context())
	if err != nil {
		apihttp.WriteError(w, err)
		return
	}

	switch r.URL.Path {
	case "/api/exports/devices.csv":
		data, err := BuildDeviceInventoryCSV(list)
		if err != nil {
			apihttp.WriteFail(w, http.StatusInternalServerError, "export error")
			return
		}
		serveAttachment(w, data, "text/csv", "devices.csv")
	case "/api/exports/devices.xlsx":
		data, err := BuildDeviceInventoryXLSX(list)
		if err != nil {
			apihttp.WriteFail(w, http.StatusInternalServerError, "export error")
			return
		}
		serveAttachment(w, data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "devices.xlsx")
	case "/api/exports/devices.pdf":
		data, err := BuildDeviceInventoryPDF(list)
		if err != nil {
			apihttp.WriteFail(w, http.StatusInternalServerError, "export error")
			return
		}
		serveAttachment(w, data, "application/pdf", "devices.pdf")
	default:
		apihttp.WriteFail(w, http.StatusNotFound, "not found")
	}
}

func serveAttachment(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
