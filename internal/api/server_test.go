package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/app"
	"github.com/danghamo/rescueme/internal/smsgw"
	"github.com/danghamo/rescueme/pkg/config"
	"github.com/danghamo/rescueme/pkg/logger"
)

const testPin = "1357"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPin), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Tracking.AutoStart = false
	cfg.Auth.PinHash = string(hash)
	cfg.Server.RateLimit = 1000
	cfg.Server.RateBurst = 1000

	log := logger.NewNop()
	a, err := app.New(context.Background(), cfg, log, app.WithSender(smsgw.NewLogSender(log)))
	require.NoError(t, err)

	s, err := NewServer(cfg, a, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = a.Bus.Run(ctx) }()
	<-a.Bus.Running()
	require.NoError(t, a.Start(ctx))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.sseBroadcaster.Close()
		srv.Close()
		cancel()
		_ = a.Close()
	})
	return s, srv
}

func rpc(t *testing.T, srv *httptest.Server, token, method string, params any) jsonrpcx.Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": "req-1"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+APIPrefix+method, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp jsonrpcx.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	return resp
}

func pair(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := rpc(t, srv, "", "auth.Pair", map[string]string{"pin": testPin, "device_name": "Pixel 8"})
	require.Nil(t, resp.Error)
	token, _ := resp.Result.(map[string]any)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestServer_Health(t *testing.T) {
	_, srv := newTestServer(t)

	res, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "memory", body.Checks["storage"].Status)
}

func TestServer_RoutesRegistered(t *testing.T) {
	s, _ := newTestServer(t)

	routes := s.router.Routes()
	for _, method := range []string{
		"auth.Pair", "server.Ping", "server.Info",
		"emergency.Activate", "emergency.Deactivate", "emergency.Status",
		"location.Report", "location.Get",
		"tracking.Start", "tracking.Stop", "tracking.Status",
		"contact.Add", "contact.Remove", "contact.List", "contact.Test",
		"route.Add", "route.Remove", "route.List",
		"permission.Set", "permission.List",
	} {
		assert.Contains(t, routes, APIPrefix+method)
	}
}

func TestServer_PublicAndProtectedMethods(t *testing.T) {
	_, srv := newTestServer(t)

	resp := rpc(t, srv, "", "server.Ping", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.ID)

	resp = rpc(t, srv, "", "emergency.Status", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpcx.Unauthorized, resp.Error.Code)

	resp = rpc(t, srv, "", "auth.Pair", map[string]string{"pin": "0000", "device_name": "Pixel 8"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpcx.PermissionDenied, resp.Error.Code)

	token := pair(t, srv)

	resp = rpc(t, srv, token, "contact.Add", map[string]string{"name": "Elif", "phone_number": "+90 555 123 4567"})
	require.Nil(t, resp.Error)

	resp = rpc(t, srv, token, "emergency.Status", nil)
	require.Nil(t, resp.Error)
	status := resp.Result.(map[string]any)
	assert.Equal(t, false, status["active"])
	assert.Equal(t, float64(1), status["contact_count"])
}

func TestServer_StreamRequiresToken(t *testing.T) {
	_, srv := newTestServer(t)

	res, err := srv.Client().Get(srv.URL + APIPrefix + "stream/status")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestServer_StreamPushesEmergencyChange(t *testing.T) {
	_, srv := newTestServer(t)
	token := pair(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+APIPrefix+"stream/status?token="+token, nil)
	require.NoError(t, err)

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				lines <- data
			}
		}
	}()

	// hello, then the status snapshot
	require.Contains(t, <-lines, `"connected"`)
	require.Contains(t, <-lines, `"status.snapshot"`)

	resp := rpc(t, srv, token, "emergency.Activate", nil)
	require.Nil(t, resp.Error)

	for line := range lines {
		if strings.Contains(line, `"emergency.changed"`) {
			assert.Contains(t, line, `"active":true`)
			return
		}
	}
	t.Fatal("stream closed before emergency.changed arrived")
}
