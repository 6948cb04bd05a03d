package events

import (
	"context"
	"encoding/json"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/pkg/logger"
)

// IndicatorTitle is the title of the ongoing tracking indicator
const IndicatorTitle = "RescueMe Aktif"

// Indicator is the persistent "tracking is running" notice shown by the UI
type Indicator struct {
	Visible bool   `json:"visible"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// NewIndicator returns the indicator text for the emergency flag
func NewIndicator(emergencyActive bool) Indicator {
	text := "📍 Konum güvenli bir şekilde takip ediliyor"
	if emergencyActive {
		text = "🚨 Acil durum aktif - Konum takip ediliyor"
	}
	return Indicator{Visible: true, Title: IndicatorTitle, Text: text}
}

// StateSource is the observable side of the Location Store
type StateSource interface {
	Subscribe() (<-chan location.TrackingState, func())
}

// Bridge turns store changes, dispatch reports and tracker observations
// into bus events
type Bridge struct {
	publisher EventPublisher
	sse       *SSEBroadcastHelper
	logger    *logger.Logger
}

// NewBridge creates a bridge publishing on publisher
func NewBridge(publisher EventPublisher, log *logger.Logger) *Bridge {
	return &Bridge{
		publisher: publisher,
		sse:       NewSSEBroadcastHelper(publisher),
		logger:    log.WithComponent("event-bridge"),
	}
}

// WatchTrackingState publishes an event per observed store change until
// ctx is done. The first value seen is the baseline and is not published.
func (b *Bridge) WatchTrackingState(ctx context.Context, source StateSource) {
	updates, cancel := source.Subscribe()
	defer cancel()

	var (
		prev    location.TrackingState
		hasPrev bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-updates:
			if !ok {
				return
			}
			if hasPrev {
				b.PublishStateChange(ctx, prev, next)
			}
			prev, hasPrev = next, true
		}
	}
}

// PublishStateChange publishes the merge patch between two states and,
// when the emergency flag flipped, an EmergencyStateChangedEvent.
// Publish failures are logged only.
func (b *Bridge) PublishStateChange(ctx context.Context, prev, next location.TrackingState) {
	changes, err := diff(prev.Record(), next.Record())
	if err != nil {
		b.logger.Warn("Failed to compute tracking state diff", zap.Error(err))
	}
	if err == nil && len(changes) == 0 {
		return
	}

	now := time.Now()
	requestID := uuid.New().String()
	event := &TrackingStateChangedEvent{
		State:     next.Record(),
		Changes:   changes,
		Timestamp: now,
		RequestID: requestID,
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Error("Failed to publish tracking state changed event", zap.Error(err))
	}

	if prev.EmergencyActive != next.EmergencyActive {
		flip := &EmergencyStateChangedEvent{
			Active:    next.EmergencyActive,
			Location:  next.Current,
			Timestamp: now,
			RequestID: requestID,
		}
		if err := b.publisher.Publish(ctx, flip); err != nil {
			b.logger.Error("Failed to publish emergency state changed event", zap.Error(err))
		}
	}
}

// DispatchHook returns a gateway hook publishing DispatchCompletedEvent
func (b *Bridge) DispatchHook() dispatch.ReportHook {
	return func(ctx context.Context, report dispatch.Report) {
		event := &DispatchCompletedEvent{
			Report:    report,
			Timestamp: time.Now(),
			RequestID: uuid.New().String(),
		}
		if err := b.publisher.Publish(ctx, event); err != nil {
			b.logger.Error("Failed to publish dispatch completed event", zap.Error(err))
		}
	}
}

// IndicatorObserver returns a tracker observer refreshing the indicator
func (b *Bridge) IndicatorObserver(ctx context.Context) func(active bool) {
	return func(active bool) {
		if err := b.sse.BroadcastToAll(ctx, MethodForegroundIndicator, NewIndicator(active)); err != nil {
			b.logger.Error("Failed to publish indicator update", zap.Error(err))
		}
	}
}

// HideIndicator tells the UI tracking has stopped
func (b *Bridge) HideIndicator(ctx context.Context) {
	if err := b.sse.BroadcastToAll(ctx, MethodForegroundIndicator, Indicator{Title: IndicatorTitle}); err != nil {
		b.logger.Error("Failed to publish indicator update", zap.Error(err))
	}
}

// diff returns the JSON merge patch turning orig into updated
func diff(orig, updated location.Record) (map[string]interface{}, error) {
	origJSON, err := json.Marshal(orig)
	if err != nil {
		return nil, err
	}
	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.CreateMergePatch(origJSON, updatedJSON)
	if err != nil {
		return nil, err
	}

	var changes map[string]interface{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
