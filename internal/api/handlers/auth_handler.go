package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/auth"
	"github.com/danghamo/rescueme/pkg/logger"
)

// AuthHandler pairs UI devices with the daemon
type AuthHandler struct {
	logger *logger.Logger
	pairer *auth.Pairer
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *logger.Logger, pairer *auth.Pairer) *AuthHandler {
	return &AuthHandler{
		logger: logger.WithComponent("auth-handler"),
		pairer: pairer,
	}
}

// PairRequest represents a pairing attempt
type PairRequest struct {
	Pin        string `json:"pin"`
	DeviceName string `json:"device_name"`
}

// PairResponse is the issued device token
type PairResponse = auth.Pairing

// HandlePair handles POST /api/v1/auth.Pair
// @Summary Pair a device
// @Description Exchange the pairing PIN for a device token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[PairRequest] true "JSON-RPC request with PairRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[PairResponse] "Device token"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Invalid request parameters"
// @Failure 403 {object} jsonrpcx.ErrorResponse "Wrong PIN or pairing disabled"
// @Router /api/v1/auth.Pair [post]
func (h *AuthHandler) HandlePair(w http.ResponseWriter, r *http.Request) {
	var params PairRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	pairing, err := h.pairer.Pair(params.Pin, params.DeviceName)
	if err != nil {
		h.logger.Warn("Pairing rejected", zap.String("deviceName", params.DeviceName), zap.Error(err))
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.WithDevice(pairing.Device.ID.String()).Info("Device paired",
		zap.String("deviceName", pairing.Device.Name))

	jsonrpcx.Success(w, req.ID, pairing)
}

// === AutoRouter Compatible Methods ===

// Pair (autorouter compatible)
func (h *AuthHandler) Pair(w http.ResponseWriter, r *http.Request) {
	h.HandlePair(w, r)
}
