package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/pkg/logger"
)

func newPublisher() *MockEventPublisher {
	p := &MockEventPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(nil)
	return p
}

func TestBridge_PublishStateChange_LocationOnly(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())

	prev := location.TrackingState{}
	next := location.TrackingState{
		Current:    &location.Point{Latitude: 41.0, Longitude: 29.0},
		LastUpdate: shared.Millis(1700000000000),
	}
	bridge.PublishStateChange(context.Background(), prev, next)

	events := pub.Events()
	require.Len(t, events, 1)
	event, ok := events[0].(*TrackingStateChangedEvent)
	require.True(t, ok)
	assert.Equal(t, next.Record(), event.State)
	assert.Equal(t, map[string]interface{}{
		"latitude":                  41.0,
		"longitude":                 29.0,
		"lastUpdateTimestampMillis": 1700000000000.0,
	}, event.Changes)
}

func TestBridge_PublishStateChange_EmergencyFlip(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())

	here := &location.Point{Latitude: 41.0, Longitude: 29.0}
	prev := location.TrackingState{Current: here, LastUpdate: 1}
	next := location.TrackingState{Current: here, LastUpdate: 1, EmergencyActive: true}
	bridge.PublishStateChange(context.Background(), prev, next)

	events := pub.Events()
	require.Len(t, events, 2)
	changed := events[0].(*TrackingStateChangedEvent)
	assert.Equal(t, map[string]interface{}{"emergencyActive": true}, changed.Changes)

	flip := events[1].(*EmergencyStateChangedEvent)
	assert.True(t, flip.Active)
	assert.Equal(t, here, flip.Location)
	assert.Equal(t, changed.RequestID, flip.RequestID)
}

func TestBridge_PublishStateChange_NoChange(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())

	st := location.TrackingState{LastUpdate: 5}
	bridge.PublishStateChange(context.Background(), st, st)

	assert.Empty(t, pub.Events())
}

func TestBridge_WatchTrackingState(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())
	source := shared.NewValue(location.TrackingState{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.WatchTrackingState(ctx, source)
		close(done)
	}()

	// wait until the baseline has been consumed
	time.Sleep(20 * time.Millisecond)
	source.Set(location.TrackingState{EmergencyActive: true})

	assert.Eventually(t, func() bool { return len(pub.Events()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestBridge_DispatchHook(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())

	report := dispatch.Report{Status: dispatch.StatusSent, Attempted: 2, Delivered: 1, Failed: 1}
	bridge.DispatchHook()(context.Background(), report)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, report, events[0].(*DispatchCompletedEvent).Report)
}

func TestBridge_IndicatorObserver(t *testing.T) {
	pub := newPublisher()
	bridge := NewBridge(pub, logger.NewNop())

	bridge.IndicatorObserver(context.Background())(true)
	bridge.HideIndicator(context.Background())

	events := pub.Events()
	require.Len(t, events, 2)

	shown := events[0].(*SSENotificationEvent)
	assert.Equal(t, MethodForegroundIndicator, shown.Method)
	assert.Equal(t, NewIndicator(true), shown.Params)
	assert.Contains(t, NewIndicator(true).Text, "Acil durum aktif")

	hidden := events[1].(*SSENotificationEvent)
	assert.False(t, hidden.Params.(Indicator).Visible)
}
