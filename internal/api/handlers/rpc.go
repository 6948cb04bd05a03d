// Package handlers serves the daemon's JSON-RPC 2.0 methods. Every handler
// exposes HandleX for explicit routing and X for the autorouter.
package handlers

import (
	"net/http"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
)

// parseRequest enforces POST and decodes the JSON-RPC envelope. On failure
// the error is attached to r and ok is false.
func parseRequest(r *http.Request) (*jsonrpcx.Request, bool) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return nil, false
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return nil, false
	}
	return req, true
}

// parseParams is parseRequest followed by decoding params into v
func parseParams(r *http.Request, v any) (*jsonrpcx.Request, bool) {
	req, ok := parseRequest(r)
	if !ok {
		return nil, false
	}
	if err := req.DecodeParams(v); err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
		return nil, false
	}
	return req, true
}

// EmptyRequest documents methods without params
type EmptyRequest struct{}

// OKResponse is returned by methods without a meaningful result
type OKResponse struct {
	OK bool `json:"ok"`
}
