package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/events"
	"github.com/danghamo/rescueme/internal/tracking"
	"github.com/danghamo/rescueme/pkg/config"
	"github.com/danghamo/rescueme/pkg/logger"
)

type recordingSender struct {
	mu     sync.Mutex
	phones []string
}

func (s *recordingSender) Send(ctx context.Context, phone, body string) error {
	return s.SendMultipart(ctx, phone, []string{body})
}

func (s *recordingSender) SendMultipart(_ context.Context, phone string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phones = append(s.phones, phone)
	return nil
}

func (s *recordingSender) Divide(body string) []string { return []string{body} }

func (s *recordingSender) Phones() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phones...)
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	methods []string
}

func (b *recordingBroadcaster) BroadcastToDevices(_ []string, n jsonrpcx.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.methods = append(b.methods, n.Method)
}

func (b *recordingBroadcaster) BroadcastToAll(n jsonrpcx.Notification) {
	b.BroadcastToDevices(nil, n)
}

func (b *recordingBroadcaster) Methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.methods...)
}

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, sender dispatch.Sender) (*App, *recordingBroadcaster) {
	t.Helper()
	log := logger.NewNop()

	a, err := New(context.Background(), cfg, log, WithSender(sender))
	require.NoError(t, err)

	rec := &recordingBroadcaster{}
	require.NoError(t, a.Bus.RegisterSSEHandlers(events.NewSSEEventHandler(rec, log)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = a.Bus.Run(ctx) }()
	<-a.Bus.Running()

	t.Cleanup(func() {
		cancel()
		_ = a.Close()
	})
	return a, rec
}

func TestNew_MemoryDriver(t *testing.T) {
	a, _ := newTestApp(t, memoryConfig(), &recordingSender{})

	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Backend)
	assert.Equal(t, tracking.Stopped, a.Tracker.State())
	assert.True(t, a.Permissions.Snapshot()["location"])
}

func TestTrackingConfig(t *testing.T) {
	cfg := config.Default().Tracking
	tc := TrackingConfig(cfg)

	assert.Equal(t, cfg.UpdateInterval, tc.Interval)
	assert.Equal(t, 2*cfg.UpdateInterval, tc.MaxDelay)
	assert.Equal(t, cfg.DispatchThresholdM, tc.DispatchThresholdMeters)
}

func TestApp_EndToEnd(t *testing.T) {
	sender := &recordingSender{}
	a, rec := newTestApp(t, memoryConfig(), sender)
	ctx := context.Background()

	require.NoError(t, a.Start(ctx))
	assert.Equal(t, tracking.Running, a.Tracker.State())

	c, err := contact.New("Ayşe", "+90 555 111 22 33", "sister")
	require.NoError(t, err)
	require.True(t, a.Contacts.Add(ctx, c))

	a.Provider.Report(location.Point{Latitude: 41.0082, Longitude: 28.9784})
	require.Eventually(t, func() bool {
		_, ok := a.Locations.GetLocation()
		return ok
	}, time.Second, 10*time.Millisecond)

	report, err := a.Emergency.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusSent, report.Status)
	assert.Equal(t, []string{"+905551112233"}, sender.Phones())

	require.Eventually(t, func() bool {
		return containsAll(rec.Methods(),
			events.MethodForegroundIndicator,
			events.MethodTrackingStateChanged,
			events.MethodEmergencyChanged,
			events.MethodDispatchCompleted)
	}, 2*time.Second, 20*time.Millisecond)

	a.StopTracking(ctx)
	assert.Equal(t, tracking.Stopped, a.Tracker.State())
}

func TestApp_StartWithoutLocationPermission(t *testing.T) {
	cfg := memoryConfig()
	cfg.Permissions.Location = false
	a, _ := newTestApp(t, cfg, &recordingSender{})

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, tracking.Stopped, a.Tracker.State())
}

func containsAll(have []string, want ...string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
