package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SSEBroadcastHelper provides utility functions for sending SSE notifications
type SSEBroadcastHelper struct {
	eventPublisher EventPublisher
}

// NewSSEBroadcastHelper creates a new SSE broadcast helper
func NewSSEBroadcastHelper(eventPublisher EventPublisher) *SSEBroadcastHelper {
	return &SSEBroadcastHelper{
		eventPublisher: eventPublisher,
	}
}

// BroadcastToAll broadcasts a message to every connected device on every daemon
func (h *SSEBroadcastHelper) BroadcastToAll(ctx context.Context, method string, params interface{}) error {
	event := &SSENotificationEvent{
		Type:      SSENotificationTypeBroadcast,
		Method:    method,
		Params:    params,
		Timestamp: time.Now(),
		RequestID: uuid.New().String(),
	}

	return h.eventPublisher.Publish(ctx, event)
}

// BroadcastToDevices broadcasts a message to specific paired devices.
// Each daemon delivers only to the devices connected to it.
func (h *SSEBroadcastHelper) BroadcastToDevices(ctx context.Context, deviceIDs []string, method string, params interface{}) error {
	if len(deviceIDs) == 0 {
		return nil
	}

	event := &SSENotificationEvent{
		Type:          SSENotificationTypeDevices,
		TargetDevices: deviceIDs,
		Method:        method,
		Params:        params,
		Timestamp:     time.Now(),
		RequestID:     uuid.New().String(),
	}

	return h.eventPublisher.Publish(ctx, event)
}

// EventPublisher interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}
