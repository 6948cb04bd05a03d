package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/pkg/logger"
)

// SSEBroadcaster interface for broadcasting SSE messages
type SSEBroadcaster interface {
	BroadcastToDevices(targetDevices []string, notification jsonrpcx.Notification)
	BroadcastToAll(notification jsonrpcx.Notification)
}

// SSEEventHandler handles events and converts them to SSE notifications
type SSEEventHandler struct {
	sseBroadcaster SSEBroadcaster
	logger         *logger.Logger
}

// NewSSEEventHandler creates a new SSE event handler
func NewSSEEventHandler(sseBroadcaster SSEBroadcaster, logger *logger.Logger) *SSEEventHandler {
	return &SSEEventHandler{
		sseBroadcaster: sseBroadcaster,
		logger:         logger.WithComponent("sse-event-handler"),
	}
}

// HandleTrackingStateChangedEvent pushes the store diff to every UI client
func (h *SSEEventHandler) HandleTrackingStateChangedEvent(ctx context.Context, event *TrackingStateChangedEvent) error {
	h.logger.Debug("Handling tracking state changed event",
		zap.String("requestId", event.RequestID),
		zap.Int("changedFields", len(event.Changes)))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodTrackingStateChanged, map[string]interface{}{
		"state":      event.State,
		"changes":    event.Changes,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

// HandleEmergencyStateChangedEvent pushes the flag and the indicator text
func (h *SSEEventHandler) HandleEmergencyStateChangedEvent(ctx context.Context, event *EmergencyStateChangedEvent) error {
	h.logger.Debug("Handling emergency state changed event",
		zap.Bool("active", event.Active),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodEmergencyChanged, map[string]interface{}{
		"active":     event.Active,
		"location":   event.Location,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

// HandleDispatchCompletedEvent pushes the dispatch report
func (h *SSEEventHandler) HandleDispatchCompletedEvent(ctx context.Context, event *DispatchCompletedEvent) error {
	h.logger.Debug("Handling dispatch completed event",
		zap.String("status", string(event.Report.Status)),
		zap.Int("delivered", event.Report.Delivered),
		zap.String("requestId", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(MethodDispatchCompleted, map[string]interface{}{
		"report":     event.Report,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
		"request_id": event.RequestID,
	}))
	return nil
}

// HandleSSENotificationEvent handles SSENotificationEvent for distributed SSE messaging
func (h *SSEEventHandler) HandleSSENotificationEvent(ctx context.Context, event *SSENotificationEvent) error {
	h.logger.Debug("Handling SSE notification event",
		zap.String("type", event.Type),
		zap.Strings("targetDevices", event.TargetDevices),
		zap.String("method", event.Method),
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.NewNotification(event.Method, event.Params)

	switch event.Type {
	case SSENotificationTypeDevices:
		// only delivered if the devices are connected to this daemon
		if len(event.TargetDevices) > 0 {
			h.sseBroadcaster.BroadcastToDevices(event.TargetDevices, notification)
		}
	case SSENotificationTypeBroadcast:
		h.sseBroadcaster.BroadcastToAll(notification)
	default:
		h.logger.Warn("Unknown SSE notification type", zap.String("type", event.Type))
	}

	return nil
}
