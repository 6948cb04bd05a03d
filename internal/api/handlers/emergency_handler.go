package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/api/middleware"
	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/emergency"
	"github.com/danghamo/rescueme/pkg/logger"
)

// EmergencyController is the emergency state machine
type EmergencyController interface {
	Activate(ctx context.Context) (dispatch.Report, error)
	Deactivate(ctx context.Context) error
	Status() emergency.Status
}

// EmergencyHandler toggles emergency mode
type EmergencyHandler struct {
	logger     *logger.Logger
	controller EmergencyController
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(logger *logger.Logger, controller EmergencyController) *EmergencyHandler {
	return &EmergencyHandler{
		logger:     logger.WithComponent("emergency-handler"),
		controller: controller,
	}
}

// ActivateResponse carries the first dispatch report
type ActivateResponse struct {
	Status emergency.Status `json:"status"`
	Report dispatch.Report  `json:"report"`
}

// HandleActivate handles POST /api/v1/emergency.Activate
// @Summary Activate emergency mode
// @Description Persists the emergency flag and sends the last stored location to every contact
// @Tags emergency
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[ActivateResponse] "Dispatch report"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Emergency flag could not be persisted"
// @Security BearerAuth
// @Router /api/v1/emergency.Activate [post]
func (h *EmergencyHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	deviceID, _ := middleware.GetDeviceID(r.Context())
	report, err := h.controller.Activate(r.Context())
	if err != nil {
		h.logger.Error("Emergency activation failed", zap.String("deviceId", deviceID), zap.Error(err))
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.Info("Emergency activated via API",
		zap.String("deviceId", deviceID),
		zap.String("dispatch", string(report.Status)))

	jsonrpcx.Success(w, req.ID, ActivateResponse{Status: h.controller.Status(), Report: report})
}

// HandleDeactivate handles POST /api/v1/emergency.Deactivate
// @Summary Deactivate emergency mode
// @Tags emergency
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[emergency.Status] "Emergency status"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Emergency flag could not be persisted"
// @Security BearerAuth
// @Router /api/v1/emergency.Deactivate [post]
func (h *EmergencyHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	if err := h.controller.Deactivate(r.Context()); err != nil {
		h.logger.Error("Emergency deactivation failed", zap.Error(err))
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, h.controller.Status())
}

// HandleStatus handles POST /api/v1/emergency.Status
// @Summary Emergency screen snapshot
// @Tags emergency
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[emergency.Status] "Emergency status"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/emergency.Status [post]
func (h *EmergencyHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}
	jsonrpcx.Success(w, req.ID, h.controller.Status())
}

// === AutoRouter Compatible Methods ===

// Activate (autorouter compatible)
func (h *EmergencyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.HandleActivate(w, r)
}

// Deactivate (autorouter compatible)
func (h *EmergencyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.HandleDeactivate(w, r)
}

// Status (autorouter compatible)
func (h *EmergencyHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.HandleStatus(w, r)
}
