// Package events carries domain events over the watermill CQRS bus and
// turns them into SSE notifications for connected UI clients.
package events

import (
	"time"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/location"
)

// TrackingStateChangedEvent is published whenever the Location Store changes
type TrackingStateChangedEvent struct {
	State     location.Record        `json:"state"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id"`
}

// EmergencyStateChangedEvent is published when emergencyActive flips
type EmergencyStateChangedEvent struct {
	Active    bool            `json:"active"`
	Location  *location.Point `json:"location,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id"`
}

// DispatchCompletedEvent is published after every emergency dispatch
type DispatchCompletedEvent struct {
	Report    dispatch.Report `json:"report"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id"`
}

// SSENotificationEvent represents an event to send SSE notifications
type SSENotificationEvent struct {
	Type          string      `json:"type"`
	TargetDevices []string    `json:"target_devices,omitempty"` // empty for broadcast
	Method        string      `json:"method"`
	Params        interface{} `json:"params"`
	Timestamp     time.Time   `json:"timestamp"`
	RequestID     string      `json:"request_id"`
}

// Event types for different notification patterns
const (
	SSENotificationTypeBroadcast = "broadcast" // Send to all devices
	SSENotificationTypeDevices   = "devices"   // Send to specific list of devices
)

// Notification methods pushed to the UI
const (
	MethodTrackingStateChanged = "tracking.state.changed"
	MethodEmergencyChanged     = "emergency.changed"
	MethodDispatchCompleted    = "dispatch.completed"
	MethodForegroundIndicator  = "tracking.indicator"
	MethodStatusSnapshot       = "status.snapshot"
)
