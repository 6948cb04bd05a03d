package handlers

import (
	"context"
	"net/http"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/permission"
	"github.com/danghamo/rescueme/pkg/logger"
)

// PermissionRegistry holds the platform grants mirrored from the device
type PermissionRegistry interface {
	Set(ctx context.Context, c permission.Capability, granted bool) error
	Snapshot() map[permission.Capability]bool
}

// PermissionHandler mirrors the device's runtime permission grants
type PermissionHandler struct {
	logger   *logger.Logger
	registry PermissionRegistry
}

// NewPermissionHandler creates a new permission handler
func NewPermissionHandler(logger *logger.Logger, registry PermissionRegistry) *PermissionHandler {
	return &PermissionHandler{
		logger:   logger.WithComponent("permission-handler"),
		registry: registry,
	}
}

// SetPermissionRequest grants or revokes one capability
type SetPermissionRequest struct {
	Capability string `json:"capability"`
	Granted    bool   `json:"granted"`
}

// PermissionsResponse is the current grant table
type PermissionsResponse struct {
	Permissions map[permission.Capability]bool `json:"permissions"`
}

// HandleSet handles POST /api/v1/permission.Set
// @Summary Grant or revoke a capability
// @Tags permission
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[SetPermissionRequest] true "JSON-RPC request with SetPermissionRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[PermissionsResponse] "Current grants"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Unknown capability"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Failed to persist change"
// @Security BearerAuth
// @Router /api/v1/permission.Set [post]
func (h *PermissionHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var params SetPermissionRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	capability, err := permission.ParseCapability(params.Capability)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}
	if err := h.registry.Set(r.Context(), capability, params.Granted); err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, PermissionsResponse{Permissions: h.registry.Snapshot()})
}

// HandleList handles POST /api/v1/permission.List
// @Summary Current capability grants
// @Tags permission
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[PermissionsResponse] "Current grants"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/permission.List [post]
func (h *PermissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}
	jsonrpcx.Success(w, req.ID, PermissionsResponse{Permissions: h.registry.Snapshot()})
}

// === AutoRouter Compatible Methods ===

// Set (autorouter compatible)
func (h *PermissionHandler) Set(w http.ResponseWriter, r *http.Request) {
	h.HandleSet(w, r)
}

// List (autorouter compatible)
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	h.HandleList(w, r)
}
