// Package emergency flips the emergency flag and sends the first message.
package emergency

import (
	"context"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/tracking"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Status is what the UI shows on the emergency screen
type Status struct {
	Active           bool            `json:"active"`
	CurrentLocation  *location.Point `json:"current_location,omitempty"`
	LastUpdateMillis shared.Millis   `json:"last_update_timestamp"`
	ContactCount     int             `json:"contact_count"`
	RouteCount       int             `json:"route_count"`
	TrackingRunning  bool            `json:"tracking_running"`
}

// TrackingState reports whether the tracking loop is running
type TrackingState interface {
	State() tracking.State
}

// Controller activates and deactivates emergency mode. It works whether or
// not the tracking loop is running.
type Controller struct {
	locations  *location.Store
	contacts   tracking.ContactSource
	routes     tracking.RouteSource
	dispatcher tracking.Dispatcher
	tracker    TrackingState
	logger     *logger.Logger
}

// NewController creates a new emergency controller
func NewController(
	locations *location.Store,
	contacts tracking.ContactSource,
	routes tracking.RouteSource,
	dispatcher tracking.Dispatcher,
	tracker TrackingState,
	log *logger.Logger,
) *Controller {
	return &Controller{
		locations:  locations,
		contacts:   contacts,
		routes:     routes,
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     log.WithComponent("emergency-controller"),
	}
}

// Activate persists emergencyActive=true and immediately dispatches the last
// stored location. If the flag cannot be persisted nothing is sent.
func (c *Controller) Activate(ctx context.Context) (dispatch.Report, error) {
	if err := c.locations.SetEmergencyActive(ctx, true); err != nil {
		return dispatch.Report{}, err
	}
	c.logger.Info("Emergency activated")

	loc, ok := c.locations.GetLocation()
	if !ok {
		c.logger.Warn("No stored location, emergency message deferred to the next update")
		return dispatch.NoLocationReport(), nil
	}

	report := c.dispatcher.SendEmergencyMessage(context.WithoutCancel(ctx), loc, c.contacts.List(), c.routes.List())
	c.logger.Info("Activation dispatch finished",
		zap.String("status", string(report.Status)),
		zap.Int("delivered", report.Delivered),
		zap.Int("attempted", report.Attempted))
	return report, nil
}

// Deactivate persists emergencyActive=false. No message is sent.
func (c *Controller) Deactivate(ctx context.Context) error {
	if err := c.locations.SetEmergencyActive(ctx, false); err != nil {
		return err
	}
	c.logger.Info("Emergency deactivated")
	return nil
}

// Status returns the emergency screen snapshot
func (c *Controller) Status() Status {
	st := c.locations.State()
	status := Status{
		Active:           st.EmergencyActive,
		CurrentLocation:  st.Current,
		LastUpdateMillis: st.LastUpdate,
		ContactCount:     len(c.contacts.List()),
		RouteCount:       len(c.routes.List()),
	}
	if c.tracker != nil {
		status.TrackingRunning = c.tracker.State() == tracking.Running
	}
	return status
}
