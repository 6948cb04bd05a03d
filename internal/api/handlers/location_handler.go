package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/pkg/logger"
)

// FixSink receives device location fixes
type FixSink interface {
	Report(fix location.Point)
}

// LocationReader is the read side of the Location Store
type LocationReader interface {
	State() location.TrackingState
}

// LocationHandler accepts fixes from the device and serves the stored record
type LocationHandler struct {
	logger *logger.Logger
	sink   FixSink
	store  LocationReader
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(logger *logger.Logger, sink FixSink, store LocationReader) *LocationHandler {
	return &LocationHandler{
		logger: logger.WithComponent("location-handler"),
		sink:   sink,
		store:  store,
	}
}

// ReportLocationRequest is one platform fix
type ReportLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// ReportLocationResponse acknowledges a fix
type ReportLocationResponse struct {
	Accepted bool `json:"accepted"`
}

// GetLocationResponse is the stored record
type GetLocationResponse struct {
	HasLocation bool            `json:"has_location"`
	Record      location.Record `json:"record"`
}

// HandleReport handles POST /api/v1/location.Report
// @Summary Report a location fix
// @Description Feeds a fix into the tracking loop. Fixes arriving faster than the fastest interval or closer than the minimum distance are filtered.
// @Tags location
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[ReportLocationRequest] true "JSON-RPC request with ReportLocationRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[ReportLocationResponse] "Fix accepted"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Coordinates out of range"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/location.Report [post]
func (h *LocationHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var params ReportLocationRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	fix, err := location.NewPoint(params.Latitude, params.Longitude)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	fix.Address = params.Address

	h.sink.Report(fix)
	h.logger.Debug("Location fix reported",
		zap.Float64("lat", fix.Latitude),
		zap.Float64("lng", fix.Longitude))

	jsonrpcx.Success(w, req.ID, ReportLocationResponse{Accepted: true})
}

// HandleGet handles POST /api/v1/location.Get
// @Summary Get the stored location record
// @Tags location
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[GetLocationResponse] "Stored record"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/location.Get [post]
func (h *LocationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	state := h.store.State()
	jsonrpcx.Success(w, req.ID, GetLocationResponse{
		HasLocation: state.Current != nil,
		Record:      state.Record(),
	})
}

// === AutoRouter Compatible Methods ===

// Report (autorouter compatible)
func (h *LocationHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.HandleReport(w, r)
}

// Get (autorouter compatible)
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.HandleGet(w, r)
}
