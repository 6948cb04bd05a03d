package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/pkg/logger"
)

// RouteRepository is the Route Store surface used by the API
type RouteRepository interface {
	Add(ctx context.Context, r route.PlannedRoute) bool
	Remove(ctx context.Context, id string) bool
	Find(id string) (route.PlannedRoute, bool)
	List() []route.PlannedRoute
}

// RouteHandler manages planned routes
type RouteHandler struct {
	logger *logger.Logger
	routes RouteRepository
	clock  shared.Clock
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(logger *logger.Logger, routes RouteRepository) *RouteHandler {
	return &RouteHandler{
		logger: logger.WithComponent("route-handler"),
		routes: routes,
		clock:  shared.NowMillis,
	}
}

// AddRouteRequest represents a new planned route
type AddRouteRequest struct {
	Name          string           `json:"name"`
	StartLocation location.Point   `json:"start_location"`
	EndLocation   location.Point   `json:"end_location"`
	Waypoints     []location.Point `json:"waypoints,omitempty"`
	Description   string           `json:"description,omitempty"`
}

// RouteIDRequest addresses one route
type RouteIDRequest struct {
	ID string `json:"id"`
}

// ListRoutesResponse is the route list
type ListRoutesResponse struct {
	Routes []route.PlannedRoute `json:"routes"`
	Total  int                  `json:"total"`
}

// HandleAdd handles POST /api/v1/route.Add
// @Summary Add a planned route
// @Tags route
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[AddRouteRequest] true "JSON-RPC request with AddRouteRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[route.PlannedRoute] "Created route"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Invalid name or coordinates"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Failed to persist change"
// @Security BearerAuth
// @Router /api/v1/route.Add [post]
func (h *RouteHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var params AddRouteRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	planned, err := route.New(params.Name, params.StartLocation, params.EndLocation, params.Waypoints, params.Description, h.clock())
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	if !h.routes.Add(r.Context(), planned) {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.StorageWriteFailed, "Failed to persist change")
		return
	}

	h.logger.Info("Route added",
		zap.String("routeId", planned.ID),
		zap.String("name", planned.Name),
		zap.Int("waypoints", len(planned.Waypoints)))
	jsonrpcx.Success(w, req.ID, planned)
}

// HandleRemove handles POST /api/v1/route.Remove
// @Summary Remove a planned route
// @Tags route
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[RouteIDRequest] true "JSON-RPC request with RouteIDRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[OKResponse] "Route removed"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 404 {object} jsonrpcx.ErrorResponse "Route not found"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Failed to persist change"
// @Security BearerAuth
// @Router /api/v1/route.Remove [post]
func (h *RouteHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var params RouteIDRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	if _, found := h.routes.Find(params.ID); !found {
		jsonrpcx.WithDomainError(r, req.ID, shared.ErrNotFound("route"))
		return
	}
	if !h.routes.Remove(r.Context(), params.ID) {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.StorageWriteFailed, "Failed to persist change")
		return
	}

	h.logger.Info("Route removed", zap.String("routeId", params.ID))
	jsonrpcx.Success(w, req.ID, OKResponse{OK: true})
}

// HandleList handles POST /api/v1/route.List
// @Summary List planned routes
// @Tags route
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[ListRoutesResponse] "Routes in insertion order"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/route.List [post]
func (h *RouteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	routes := h.routes.List()
	jsonrpcx.Success(w, req.ID, ListRoutesResponse{Routes: routes, Total: len(routes)})
}

// === AutoRouter Compatible Methods ===

// Add (autorouter compatible)
func (h *RouteHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.HandleAdd(w, r)
}

// Remove (autorouter compatible)
func (h *RouteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.HandleRemove(w, r)
}

// List (autorouter compatible)
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	h.HandleList(w, r)
}
