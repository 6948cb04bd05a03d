package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/auth"
	"github.com/danghamo/rescueme/pkg/logger"
)

type staticValidator map[string]*auth.JWTClaims

func (v staticValidator) Validate(token string) (*auth.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) jsonrpcx.Response {
	t.Helper()
	var resp jsonrpcx.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	log := logger.NewNop()
	validator := staticValidator{"good": {DeviceID: "dev-1", DeviceName: "Pixel"}}
	authMW := NewAuthMiddleware(validator, false, log)

	var seen string
	protected := authMW.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetDeviceID(r.Context())
		name, _ := GetDeviceName(r.Context())
		jsonrpcx.Success(w, 1, name)
	}))
	handler := Chain(ErrorAdapter(log))(protected)

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)
		r.Header.Set("Authorization", "Bearer good")
		resp := decode(t, serve(handler, r))
		assert.Nil(t, resp.Error)
		assert.Equal(t, "Pixel", resp.Result)
		assert.Equal(t, "dev-1", seen)
	})

	t.Run("missing header", func(t *testing.T) {
		resp := decode(t, serve(handler, httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)))
		require.NotNil(t, resp.Error)
		assert.Equal(t, jsonrpcx.Unauthorized, resp.Error.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)
		r.Header.Set("Authorization", "Bearer nope")
		resp := decode(t, serve(handler, r))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Invalid or expired token", resp.Error.Message)
	})
}

func TestAuthMiddleware_HandlerErrorsReachAdapter(t *testing.T) {
	log := logger.NewNop()
	authMW := NewAuthMiddleware(staticValidator{"good": {DeviceID: "dev-1"}}, false, log)
	handler := Chain(ErrorAdapter(log))(authMW.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonrpcx.WithError(r, 9, jsonrpcx.InvalidParams, "bad params")
	})))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)
	r.Header.Set("Authorization", "Bearer good")
	resp := decode(t, serve(handler, r))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, resp.Error.Code)
	assert.EqualValues(t, 9, resp.ID)
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	authMW := NewAuthMiddleware(nil, true, logger.NewNop())

	var seen string
	h := authMW.RequireSSEAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetDeviceID(r.Context())
	}))
	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/stream/status", nil))
	assert.Equal(t, LocalDeviceID, seen)
}

func TestRequireSSEAuth_QueryToken(t *testing.T) {
	authMW := NewAuthMiddleware(staticValidator{"good": {DeviceID: "dev-1"}}, false, logger.NewNop())

	var seen string
	h := authMW.RequireSSEAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetDeviceID(r.Context())
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/stream/status?token=good", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev-1", seen)

	w = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/stream/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := decode(t, serve(h, httptest.NewRequest(http.MethodPost, "/", nil)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpcx.InternalError, resp.Error.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(logger.NewNop(), 0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = ip + ":5555"
		return r
	}

	assert.Equal(t, http.StatusNoContent, serve(h, req("10.0.0.1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, req("10.0.0.1")).Code)

	resp := decode(t, serve(h, req("10.0.0.1")))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpcx.RateLimited, resp.Error.Code)

	// another client has its own bucket
	assert.Equal(t, http.StatusNoContent, serve(h, req("10.0.0.2")).Code)
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := serve(h, httptest.NewRequest(http.MethodOptions, "/api/v1/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", getClientIP(r))
}
