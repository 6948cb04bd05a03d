package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/emergency"
	"github.com/danghamo/rescueme/internal/tracking"
	"github.com/danghamo/rescueme/pkg/logger"
)

// TrackingControl starts and stops the tracking loop
type TrackingControl interface {
	StartTracking(ctx context.Context) error
	StopTracking(ctx context.Context)
}

// TrackingStatusSource reports loop and store state
type TrackingStatusSource interface {
	Status() tracking.Status
}

// StatusSource reports the emergency screen snapshot
type StatusSource interface {
	Status() emergency.Status
}

// TrackingHandler controls the location tracking loop
type TrackingHandler struct {
	logger    *logger.Logger
	control   TrackingControl
	tracker   TrackingStatusSource
	emergency StatusSource
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(logger *logger.Logger, control TrackingControl, tracker TrackingStatusSource, emergency StatusSource) *TrackingHandler {
	return &TrackingHandler{
		logger:    logger.WithComponent("tracking-handler"),
		control:   control,
		tracker:   tracker,
		emergency: emergency,
	}
}

// TrackingStatusResponse combines the loop and the stored state
type TrackingStatusResponse struct {
	Tracking  tracking.Status  `json:"tracking"`
	Emergency emergency.Status `json:"emergency"`
}

func (h *TrackingHandler) status() TrackingStatusResponse {
	return TrackingStatusResponse{Tracking: h.tracker.Status(), Emergency: h.emergency.Status()}
}

// HandleStart handles POST /api/v1/tracking.Start
// @Summary Start location tracking
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[TrackingStatusResponse] "Tracking status"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 403 {object} jsonrpcx.ErrorResponse "Location permission not granted"
// @Security BearerAuth
// @Router /api/v1/tracking.Start [post]
func (h *TrackingHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	if err := h.control.StartTracking(r.Context()); err != nil {
		h.logger.Warn("Tracking start rejected", zap.Error(err))
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, h.status())
}

// HandleStop handles POST /api/v1/tracking.Stop
// @Summary Stop location tracking
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[TrackingStatusResponse] "Tracking status"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/tracking.Stop [post]
func (h *TrackingHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	h.control.StopTracking(r.Context())
	jsonrpcx.Success(w, req.ID, h.status())
}

// HandleStatus handles POST /api/v1/tracking.Status
// @Summary Tracking status
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[TrackingStatusResponse] "Tracking status"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/tracking.Status [post]
func (h *TrackingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}
	jsonrpcx.Success(w, req.ID, h.status())
}

// === AutoRouter Compatible Methods ===

// Start (autorouter compatible)
func (h *TrackingHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.HandleStart(w, r)
}

// Stop (autorouter compatible)
func (h *TrackingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.HandleStop(w, r)
}

// Status (autorouter compatible)
func (h *TrackingHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.HandleStatus(w, r)
}
