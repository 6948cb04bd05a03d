package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/pkg/config"
)

// Version is reported by server.Info
const Version = "0.1.0"

// ServerHandler handles server information requests
type ServerHandler struct {
	config  config.ServerConfig
	storage string
	started time.Time
}

// NewServerHandler creates a new server handler
func NewServerHandler(cfg config.ServerConfig, storageDriver string) *ServerHandler {
	return &ServerHandler{config: cfg, storage: storageDriver, started: time.Now()}
}

// PingResponse is the server.Ping result
type PingResponse struct {
	Message string `json:"message"`
}

// ServerInfoResponse represents server information
type ServerInfoResponse struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	URL           string `json:"url"`
	StorageDriver string `json:"storage_driver"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HandlePing handles POST /api/v1/server.Ping
// @Summary Liveness probe
// @Tags server
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[PingResponse] "pong"
// @Router /api/v1/server.Ping [post]
func (h *ServerHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}
	jsonrpcx.Success(w, req.ID, PingResponse{Message: "pong"})
}

// HandleServerInfo handles POST /api/v1/server.Info
// @Summary Server information
// @Tags server
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[ServerInfoResponse] "Server information"
// @Router /api/v1/server.Info [post]
func (h *ServerHandler) HandleServerInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, ServerInfoResponse{
		Version:       Version,
		Environment:   h.config.Environment,
		URL:           fmt.Sprintf("http://%s", h.config.GetServerAddr()),
		StorageDriver: h.storage,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// === AutoRouter Compatible Methods ===

// Ping (autorouter compatible)
func (h *ServerHandler) Ping(w http.ResponseWriter, r *http.Request) {
	h.HandlePing(w, r)
}

// Info handles server info retrieval (autorouter compatible)
func (h *ServerHandler) Info(w http.ResponseWriter, r *http.Request) {
	h.HandleServerInfo(w, r)
}
