package jsonrpcx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danghamo/rescueme/internal/domain/shared"
)

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is a JSON-RPC 2.0 request without id, used for SSE pushes
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RequestT documents a typed request in swagger annotations
type RequestT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Method  string `json:"method"`
	Params  T      `json:"params"`
	ID      any    `json:"id"`
}

// ResponseT documents a typed response in swagger annotations
type ResponseT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Result  T      `json:"result"`
	ID      any    `json:"id"`
}

// ErrorResponse documents an error response in swagger annotations
type ErrorResponse struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Error   Error  `json:"error"`
	ID      any    `json:"id"`
}

// JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Application errors, reserved range -32000..-32099
	Unauthorized       = -32001
	PermissionDenied   = -32003
	NotFound           = -32004
	StorageWriteFailed = -32010
	RateLimited        = -32029
)

type contextKey string

const errorContextKey contextKey = "jsonrpc_error"

// NewNotification builds a notification for method
func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: "2.0", Method: method, Params: params}
}

// ParseRequest parses a JSON-RPC 2.0 request from the HTTP request body
func ParseRequest(r *http.Request) (*Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	if req.JSONRPC != "2.0" {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", req.JSONRPC)
	}

	return &req, nil
}

// DecodeParams unmarshals params into v; absent params leave v untouched
func (req *Request) DecodeParams(v any) error {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil
	}
	return json.Unmarshal(req.Params, v)
}

// Success sends a successful JSON-RPC 2.0 response
func Success(w http.ResponseWriter, id any, result any) {
	Write(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

// WithError attaches an error to the request for the ErrorAdapter middleware
func WithError(r *http.Request, id any, code int, message string) {
	*r = *SetError(r, id, code, message)
}

// WithDomainError attaches err, translating domain error codes
func WithDomainError(r *http.Request, id any, err error) {
	code, message := FromError(err)
	WithError(r, id, code, message)
}

// SetError returns a copy of r carrying a JSON-RPC error
func SetError(r *http.Request, id any, code int, message string) *http.Request {
	response := &Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}

	ctx := context.WithValue(r.Context(), errorContextKey, response)
	return r.WithContext(ctx)
}

// ErrorFromContext returns the error attached by WithError
func ErrorFromContext(ctx context.Context) (*Response, bool) {
	resp, ok := ctx.Value(errorContextKey).(*Response)
	return resp, ok
}

// FromError maps a domain error to a JSON-RPC code and message
func FromError(err error) (int, string) {
	switch shared.ErrorCode(err) {
	case "INVALID_INPUT":
		return InvalidParams, err.Error()
	case "NOT_FOUND":
		return NotFound, err.Error()
	case "PERMISSION_DENIED":
		return PermissionDenied, err.Error()
	case "STORAGE_WRITE_FAILED":
		return StorageWriteFailed, "Failed to persist change"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return InternalError, "Request cancelled"
	}
	return InternalError, "Internal server error"
}

// ErrorAdapter interface for middleware to send error responses
type ErrorAdapter interface {
	SendError(w http.ResponseWriter, id any, code int, message string)
}

type errorAdapter struct{}

// NewErrorAdapter creates a new error adapter for middleware use
func NewErrorAdapter() ErrorAdapter {
	return &errorAdapter{}
}

func (ea *errorAdapter) SendError(w http.ResponseWriter, id any, code int, message string) {
	Write(w, Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	})
}

// Write sends a JSON-RPC 2.0 response (always HTTP 200)
func Write(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// Encode errors surface in the logging middleware via the status code
	_ = json.NewEncoder(w).Encode(response)
}
