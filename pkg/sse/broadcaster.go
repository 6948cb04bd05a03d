// Package sse streams JSON-RPC notifications to paired devices.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/pkg/logger"
)

// DeviceResolver returns the authenticated device for a request
type DeviceResolver func(ctx context.Context) (deviceID string, ok bool)

// SnapshotFunc builds the notification sent right after a client connects
type SnapshotFunc func() jsonrpcx.Notification

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	DeviceID string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time

	mutex     sync.Mutex // Protects concurrent writes to this client
	closeOnce sync.Once
}

func (c *SSEClient) close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// DeviceMessage represents a message targeted to a specific device
type DeviceMessage struct {
	DeviceID     string
	Notification jsonrpcx.Notification
}

// Option configures the broadcaster
type Option func(*SSEBroadcaster)

// WithHeartbeat overrides the heartbeat and stale-client intervals
func WithHeartbeat(heartbeat, staleAfter time.Duration) Option {
	return func(b *SSEBroadcaster) {
		b.heartbeat = heartbeat
		b.staleAfter = staleAfter
	}
}

// WithSnapshot sends snapshot() to every client when it connects
func WithSnapshot(snapshot SnapshotFunc) Option {
	return func(b *SSEBroadcaster) {
		b.snapshot = snapshot
	}
}

// SSEBroadcaster manages SSE connections and broadcasts
type SSEBroadcaster struct {
	logger          *logger.Logger
	resolve         DeviceResolver
	snapshot        SnapshotFunc
	heartbeat       time.Duration
	staleAfter      time.Duration
	clients         map[string]*SSEClient
	deviceClients   map[string][]*SSEClient
	mutex           sync.RWMutex
	broadcast       chan []byte
	deviceBroadcast chan DeviceMessage
	shutdown        chan struct{}
	closeOnce       sync.Once
}

// NewSSEBroadcaster creates a new SSE broadcaster
func NewSSEBroadcaster(log *logger.Logger, resolve DeviceResolver, opts ...Option) *SSEBroadcaster {
	b := &SSEBroadcaster{
		logger:          log.WithComponent("sse-broadcaster"),
		resolve:         resolve,
		heartbeat:       30 * time.Second,
		staleAfter:      90 * time.Second,
		clients:         make(map[string]*SSEClient),
		deviceClients:   make(map[string][]*SSEClient),
		broadcast:       make(chan []byte, 256),
		deviceBroadcast: make(chan DeviceMessage, 256),
		shutdown:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.broadcastLoop()
	go b.deviceBroadcastLoop()
	go b.cleanupLoop()

	return b
}

// AddClient adds a new SSE client
func (b *SSEBroadcaster) AddClient(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.clients[client.ID] = client
	b.deviceClients[client.DeviceID] = append(b.deviceClients[client.DeviceID], client)

	b.logger.Debug("SSE client connected",
		zap.String("clientId", client.ID),
		zap.String("deviceId", client.DeviceID))
}

// RemoveClient removes an SSE client
func (b *SSEBroadcaster) RemoveClient(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.removeLocked(clientID)
}

func (b *SSEBroadcaster) removeLocked(clientID string) {
	client, exists := b.clients[clientID]
	if !exists {
		return
	}
	client.close()
	delete(b.clients, clientID)

	siblings := b.deviceClients[client.DeviceID]
	for i, c := range siblings {
		if c.ID == clientID {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(b.deviceClients, client.DeviceID)
	} else {
		b.deviceClients[client.DeviceID] = siblings
	}

	b.logger.Debug("SSE client disconnected",
		zap.String("clientId", clientID),
		zap.String("deviceId", client.DeviceID))
}

// BroadcastToAll sends a JSON-RPC notification to all connected clients
func (b *SSEBroadcaster) BroadcastToAll(notification jsonrpcx.Notification) {
	data, err := json.Marshal(notification)
	if err != nil {
		b.logger.Error("Failed to marshal JSON-RPC notification", zap.Error(err))
		return
	}

	select {
	case <-b.shutdown:
	case b.broadcast <- data:
	default:
		b.logger.Warn("Broadcast channel full, dropping message",
			zap.String("method", notification.Method))
	}
}

// BroadcastToDevices sends a notification to the listed devices that are
// connected to this daemon
func (b *SSEBroadcaster) BroadcastToDevices(targetDevices []string, notification jsonrpcx.Notification) {
	if len(targetDevices) == 0 {
		return
	}

	local := b.localDevices(targetDevices)
	if len(local) == 0 {
		b.logger.Debug("No target devices connected to this daemon",
			zap.Strings("targetDevices", targetDevices))
		return
	}

	for _, deviceID := range local {
		select {
		case <-b.shutdown:
			return
		case b.deviceBroadcast <- DeviceMessage{DeviceID: deviceID, Notification: notification}:
		default:
			b.logger.Warn("Device broadcast channel full, dropping message",
				zap.String("deviceId", deviceID))
		}
	}
}

func (b *SSEBroadcaster) localDevices(targets []string) []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	local := make([]string, 0, len(targets))
	for _, deviceID := range targets {
		if len(b.deviceClients[deviceID]) > 0 {
			local = append(local, deviceID)
		}
	}
	return local
}

// IsConnected reports whether a device has at least one open stream
func (b *SSEBroadcaster) IsConnected(deviceID string) bool {
	return len(b.localDevices([]string{deviceID})) == 1
}

// deviceBroadcastLoop handles broadcasting messages to specific devices
func (b *SSEBroadcaster) deviceBroadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in deviceBroadcastLoop", zap.Any("panic", r))
			go b.deviceBroadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case msg := <-b.deviceBroadcast:
			data, err := json.Marshal(msg.Notification)
			if err != nil {
				b.logger.Error("Failed to marshal device notification", zap.Error(err))
				continue
			}

			b.mutex.RLock()
			targets := append([]*SSEClient(nil), b.deviceClients[msg.DeviceID]...)
			b.mutex.RUnlock()

			b.deliver(targets, data)
		}
	}
}

// broadcastLoop handles broadcasting messages to all connected clients
func (b *SSEBroadcaster) broadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in broadcastLoop", zap.Any("panic", r))
			go b.broadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case data := <-b.broadcast:
			b.mutex.RLock()
			targets := make([]*SSEClient, 0, len(b.clients))
			for _, client := range b.clients {
				targets = append(targets, client)
			}
			b.mutex.RUnlock()

			b.deliver(targets, data)
		}
	}
}

// deliver writes data to each client and drops the ones that fail
func (b *SSEBroadcaster) deliver(targets []*SSEClient, data []byte) {
	for _, client := range targets {
		if err := b.sendToClient(client, data); err != nil {
			b.logger.Warn("Failed to send to SSE client",
				zap.String("clientId", client.ID),
				zap.String("deviceId", client.DeviceID),
				zap.Error(err))
			b.RemoveClient(client.ID)
		}
	}
}

// sendToClient sends data to a specific SSE client
func (b *SSEBroadcaster) sendToClient(client *SSEClient, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	if client.Writer == nil || client.Flusher == nil {
		return fmt.Errorf("client has no writer")
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	select {
	case <-client.Done:
		return fmt.Errorf("client connection closed")
	default:
	}

	// single write to reduce chunking issues
	frame := fmt.Sprintf("data: %s\n\n", data)
	n, err := client.Writer.Write([]byte(frame))
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: wrote %d/%d bytes", n, len(frame))
	}

	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

// cleanupLoop removes stale connections
func (b *SSEBroadcaster) cleanupLoop() {
	ticker := time.NewTicker(b.staleAfter / 3)
	defer ticker.Stop()

	for {
		select {
		case <-b.shutdown:
			return
		case <-ticker.C:
			b.removeStale(time.Now())
		}
	}
}

func (b *SSEBroadcaster) removeStale(now time.Time) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for clientID, client := range b.clients {
		client.mutex.Lock()
		lastSeen := client.LastSeen
		client.mutex.Unlock()

		if now.Sub(lastSeen) > b.staleAfter {
			b.logger.Debug("Removing stale SSE client", zap.String("clientId", clientID))
			b.removeLocked(clientID)
		}
	}
}

// GetClientCount returns the number of connected clients
func (b *SSEBroadcaster) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Close shuts down the broadcaster and disconnects every client
func (b *SSEBroadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.shutdown)

		b.mutex.Lock()
		defer b.mutex.Unlock()
		for _, client := range b.clients {
			client.close()
		}
		b.clients = make(map[string]*SSEClient)
		b.deviceClients = make(map[string][]*SSEClient)

		b.logger.Debug("SSE broadcaster shutdown complete")
	})
}

// HandleSSE streams notifications to the authenticated device
func (b *SSEBroadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := b.resolve(r.Context())
	if !ok {
		b.logger.Warn("SSE: no device in request context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Server-Sent Events not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	client := &SSEClient{
		ID:       fmt.Sprintf("%s-%d", deviceID, time.Now().UnixNano()),
		DeviceID: deviceID,
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}

	hello, _ := json.Marshal(map[string]string{"type": "connected", "client_id": client.ID})
	if err := b.sendToClient(client, hello); err != nil {
		return
	}
	if b.snapshot != nil {
		if data, err := json.Marshal(b.snapshot()); err == nil {
			if err := b.sendToClient(client, data); err != nil {
				return
			}
		}
	}

	b.AddClient(client)
	defer b.RemoveClient(client.ID)

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		case <-b.shutdown:
			return
		case now := <-heartbeat.C:
			beat, _ := json.Marshal(map[string]string{"type": "heartbeat", "timestamp": now.Format(time.RFC3339)})
			if err := b.sendToClient(client, beat); err != nil {
				b.logger.Warn("Failed to send heartbeat",
					zap.String("clientId", client.ID),
					zap.Error(err))
				return
			}
		}
	}
}
