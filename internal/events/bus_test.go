package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/pkg/logger"
)

type sent struct {
	targets      []string
	notification jsonrpcx.Notification
}

// recordingBroadcaster records notifications instead of writing to clients
type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sent
}

func (b *recordingBroadcaster) BroadcastToDevices(targets []string, n jsonrpcx.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{targets: targets, notification: n})
}

func (b *recordingBroadcaster) BroadcastToAll(n jsonrpcx.Notification) {
	b.BroadcastToDevices(nil, n)
}

func (b *recordingBroadcaster) Sent() []sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sent(nil), b.sent...)
}

func (b *recordingBroadcaster) methods() []string {
	var out []string
	for _, s := range b.Sent() {
		out = append(out, s.notification.Method)
	}
	return out
}

func TestSSEEventHandler_RoutesNotifications(t *testing.T) {
	rec := &recordingBroadcaster{}
	h := NewSSEEventHandler(rec, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, h.HandleSSENotificationEvent(ctx, &SSENotificationEvent{
		Type: SSENotificationTypeDevices, TargetDevices: []string{"pixel"}, Method: "a",
	}))
	require.NoError(t, h.HandleSSENotificationEvent(ctx, &SSENotificationEvent{
		Type: SSENotificationTypeBroadcast, Method: "b",
	}))
	require.NoError(t, h.HandleSSENotificationEvent(ctx, &SSENotificationEvent{
		Type: "bogus", Method: "c",
	}))

	got := rec.Sent()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"pixel"}, got[0].targets)
	assert.Equal(t, "a", got[0].notification.Method)
	assert.Equal(t, "2.0", got[0].notification.JSONRPC)
	assert.Nil(t, got[1].targets)
}

func TestBus_MemoryDriverDeliversToSSE(t *testing.T) {
	log := logger.NewNop()
	bus, err := NewBus(BusConfig{Driver: DriverMemory}, log)
	require.NoError(t, err)

	rec := &recordingBroadcaster{}
	require.NoError(t, bus.RegisterSSEHandlers(NewSSEEventHandler(rec, log)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = bus.Run(ctx)
	}()
	<-bus.Running()
	defer bus.Close()

	bridge := NewBridge(bus, log)
	bridge.PublishStateChange(ctx,
		location.TrackingState{},
		location.TrackingState{EmergencyActive: true})
	bridge.DispatchHook()(ctx, dispatch.Report{Status: dispatch.StatusNoRecipients})

	assert.Eventually(t, func() bool { return len(rec.Sent()) == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]string{MethodTrackingStateChanged, MethodEmergencyChanged, MethodDispatchCompleted},
		rec.methods())
}

func TestNewBus_Validation(t *testing.T) {
	_, err := NewBus(BusConfig{Driver: "kafka"}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewBus(BusConfig{Driver: DriverRedis}, logger.NewNop())
	assert.Error(t, err)
}
