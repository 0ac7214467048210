package backfill

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/careledger/ndis-ledger/pkg/tenant"
	log "github.com/sirupsen/logrus"
)

type ResponseDTO struct {
	Report Report `json:"report"`
	Error  string `json:"error,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

// RunBackfill godoc
// @Summary Charge all completed shifts that have no transaction yet
// @Description A tenant scoped request backfills only its own tenant. Without a tenant header the run
// @Description covers tenantId, or all tenants when tenantId is omitted. Safe to repeat.
// @Tags Backfill
// @Produce json
// @Param tenantId query int false "Tenant ID"
// @Success 200 {object} ResponseDTO
// @Failure 403 {object} ResponseDTO "tenantId differs from the caller's tenant"
// @Failure 404 {object} ResponseDTO "Tenant not found"
// @Failure 500 {object} ResponseDTO "Run aborted, partial report included"
// @Router /api/backfill [post]
func (h *Handler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var tenantId *int
	if value := r.URL.Query().Get("tenantId"); value != "" {
		id, err := strconv.Atoi(value)
		if err != nil {
			http.Error(w, "Invalid tenant id", http.StatusBadRequest)
			return
		}
		tenantId = &id
	}
	if callerId, err := tenant.CurrentId(r.Context()); err == nil {
		if tenantId != nil && *tenantId != callerId {
			log.Warnf("tenant %d requested a backfill of tenant %d", callerId, *tenantId)
			writeResponse(w, http.StatusForbidden, ResponseDTO{Report: newReport(), Error: "backfill is limited to the caller's tenant"})
			return
		}
		tenantId = &callerId
	}
	log.Debugf("Backfill requested (tenant %v)", tenantLabel(tenantId))

	report, err := h.service.RunBackfill(r.Context(), tenantId)
	response := ResponseDTO{Report: report}
	status := http.StatusOK
	if err != nil {
		response.Error = err.Error()
		status = http.StatusInternalServerError
		if errors.Is(err, tenant.ErrTenantNotFound) {
			status = http.StatusNotFound
		}
	}
	writeResponse(w, status, response)
}

func writeResponse(w http.ResponseWriter, status int, response ResponseDTO) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("failed to encode backfill response: %v", err)
	}
}

func tenantLabel(id *int) any {
	if id == nil {
		return "all"
	}
	return *id
}
