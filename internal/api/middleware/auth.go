package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/auth"
	"github.com/danghamo/rescueme/pkg/logger"
)

// DeviceContextKey is the key for storing device info in request context
type DeviceContextKey string

const (
	// DeviceIDContextKey stores the paired device ID in context
	DeviceIDContextKey DeviceContextKey = "device_id"
	// DeviceNameContextKey stores the paired device name in context
	DeviceNameContextKey DeviceContextKey = "device_name"
)

// LocalDeviceID is used for every request when authentication is disabled
const LocalDeviceID = "local"

// TokenValidator resolves bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.JWTClaims, error)
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	validator TokenValidator
	disabled  bool
	logger    *logger.Logger
}

// NewAuthMiddleware creates a new auth middleware. When disabled every
// request is attributed to LocalDeviceID.
func NewAuthMiddleware(validator TokenValidator, disabled bool, logger *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		disabled:  disabled,
		logger:    logger.WithComponent("auth-middleware"),
	}
}

// RequireAuth returns a middleware that requires a device token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, withDevice(r, LocalDeviceID, LocalDeviceID))
			return
		}

		tokenString, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			m.logger.Debug("Missing or malformed Authorization header")
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Missing Authorization header")
			return
		}

		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.logger.Debug("Invalid JWT token", zap.Error(err))
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Invalid or expired token")
			return
		}

		m.logger.Debug("JWT authentication successful",
			zap.String("deviceId", claims.DeviceID),
			zap.String("deviceName", claims.DeviceName))

		next.ServeHTTP(w, withDevice(r, claims.DeviceID, claims.DeviceName))
	})
}

// RequireSSEAuth is RequireAuth for EventSource clients, which cannot set
// headers: the token may also arrive as the "token" query parameter.
func (m *AuthMiddleware) RequireSSEAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, withDevice(r, LocalDeviceID, LocalDeviceID))
			return
		}

		tokenString, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.logger.Debug("Invalid SSE token", zap.Error(err))
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, withDevice(r, claims.DeviceID, claims.DeviceName))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// withDevice updates r in place so errors attached further down the chain
// stay visible to the ErrorAdapter holding the same pointer
func withDevice(r *http.Request, deviceID, deviceName string) *http.Request {
	ctx := context.WithValue(r.Context(), DeviceIDContextKey, deviceID)
	ctx = context.WithValue(ctx, DeviceNameContextKey, deviceName)
	*r = *r.WithContext(ctx)
	return r
}

// GetDeviceID extracts the device ID from request context
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDContextKey).(string)
	return deviceID, ok
}

// GetDeviceName extracts the device name from request context
func GetDeviceName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(DeviceNameContextKey).(string)
	return name, ok
}
