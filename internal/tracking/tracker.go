// Package tracking runs the background location loop: every fix is
// persisted, and while an emergency is active a message is dispatched on
// the first fix and again whenever the user has moved past a threshold.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/permission"
	"github.com/danghamo/rescueme/pkg/logger"
)

// State of the loop
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Config holds the loop tunables
type Config struct {
	Request
	DispatchThresholdMeters float64
}

// DefaultConfig returns 15s updates, 10s fastest, 10m pre-filter, 50m threshold
func DefaultConfig() Config {
	return Config{
		Request: Request{
			Interval:          15 * time.Second,
			FastestInterval:   10 * time.Second,
			MaxDelay:          30 * time.Second,
			MinDistanceMeters: 10,
		},
		DispatchThresholdMeters: 50,
	}
}

// Dispatcher sends the emergency message
type Dispatcher interface {
	SendEmergencyMessage(ctx context.Context, loc location.Point, contacts []contact.EmergencyContact, routes []route.PlannedRoute) dispatch.Report
}

// ContactSource lists the current contacts
type ContactSource interface {
	List() []contact.EmergencyContact
}

// RouteSource lists the current planned routes
type RouteSource interface {
	List() []route.PlannedRoute
}

// Decision describes what one location update did
type Decision struct {
	EmergencyActive bool    `json:"emergency_active"`
	Dispatched      bool    `json:"dispatched"`
	FirstSample     bool    `json:"first_sample"`
	DistanceMeters  float64 `json:"distance_m"`
}

// Status is a snapshot of the loop for observers
type Status struct {
	State           string          `json:"state"`
	Running         bool            `json:"running"`
	EmergencyActive bool            `json:"emergency_active"`
	Baseline        *location.Point `json:"baseline,omitempty"`
}

// Tracker is the location tracking loop
type Tracker struct {
	provider   Provider
	locations  *location.Store
	contacts   ContactSource
	routes     RouteSource
	dispatcher Dispatcher
	perms      permission.Checker
	config     Config
	logger     *logger.Logger

	mu     sync.Mutex // guards state, sub, cancel and done
	state  State
	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}

	handleMu        sync.Mutex // serializes HandleLocationUpdate
	cachedEmergency bool
	activation      uint64
	baseline        *location.Point
	observers       []func(active bool)

	inflight conc.WaitGroup
}

// NewTracker creates a stopped tracker
func NewTracker(
	provider Provider,
	locations *location.Store,
	contacts ContactSource,
	routes RouteSource,
	dispatcher Dispatcher,
	perms permission.Checker,
	cfg Config,
	log *logger.Logger,
) *Tracker {
	return &Tracker{
		provider:        provider,
		locations:       locations,
		contacts:        contacts,
		routes:          routes,
		dispatcher:      dispatcher,
		perms:           perms,
		config:          cfg,
		logger:          log.WithComponent("tracker"),
		cachedEmergency: locations.GetEmergencyActive(),
		activation:      locations.Activations(),
	}
}

// OnEmergencyChange registers a callback run when the loop observes the
// emergency flag flip. Register before Start; fn must not call back into
// the tracker.
func (t *Tracker) OnEmergencyChange(fn func(active bool)) {
	t.handleMu.Lock()
	defer t.handleMu.Unlock()
	t.observers = append(t.observers, fn)
}

// Start registers for updates and begins the loop. Without the location
// permission it returns a PERMISSION_DENIED error and stays stopped.
// Starting a running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		return nil
	}
	if !t.perms.Granted(permission.Location) {
		t.logger.Warn("Location permission not granted, tracking not started")
		return shared.ErrPermissionDenied(string(permission.Location))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := t.provider.Subscribe(runCtx, t.config.Request)
	if err != nil {
		cancel()
		t.logger.Error("Failed to subscribe to location updates", zap.Error(err))
		return err
	}

	done := make(chan struct{})
	t.state = Running
	t.sub = sub
	t.cancel = cancel
	t.done = done

	go t.run(runCtx, sub, done)

	t.logger.Info("Location tracking started",
		zap.Duration("interval", t.config.Interval),
		zap.Float64("threshold_m", t.config.DispatchThresholdMeters))
	return nil
}

// Stop deregisters from updates. Once it returns no further update is
// handled. Dispatches already issued keep running. Stopping a stopped
// tracker is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state == Stopped {
		t.mu.Unlock()
		return
	}
	sub, cancel, done := t.sub, t.cancel, t.done
	t.state = Stopped
	t.sub, t.cancel, t.done = nil, nil, nil
	t.mu.Unlock()

	cancel()
	sub.Unsubscribe()
	<-done

	t.logger.Info("Location tracking stopped")
}

// State returns Running or Stopped
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Status returns a snapshot for observers
func (t *Tracker) Status() Status {
	state := t.State()

	t.handleMu.Lock()
	defer t.handleMu.Unlock()

	var baseline *location.Point
	if t.baseline != nil {
		b := *t.baseline
		baseline = &b
	}
	return Status{
		State:           state.String(),
		Running:         state == Running,
		EmergencyActive: t.cachedEmergency,
		Baseline:        baseline,
	}
}

// Wait blocks until every dispatch issued so far has finished
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

func (t *Tracker) run(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)

	if p, ok, err := t.provider.LastKnown(ctx); err != nil {
		t.logger.Warn("Failed to read last known location", zap.Error(err))
	} else if ok {
		t.HandleLocationUpdate(ctx, p)
	}

	maxDelay := t.config.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * t.config.Interval
	}
	var stale <-chan time.Time
	var watchdog *time.Timer
	if maxDelay > 0 {
		watchdog = time.NewTimer(maxDelay)
		defer watchdog.Stop()
		stale = watchdog.C
	}

	updates := sub.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stale:
			t.logger.Warn("No location update within max delay", zap.Duration("max_delay", maxDelay))
			watchdog.Reset(maxDelay)
		case p, ok := <-updates:
			if !ok {
				t.logger.Warn("Location updates closed by provider")
				t.markStopped(done)
				return
			}
			if ctx.Err() != nil {
				return
			}
			t.HandleLocationUpdate(ctx, p)
			if watchdog != nil {
				watchdog.Reset(maxDelay)
			}
		}
	}
}

// markStopped records that the loop ended on its own
func (t *Tracker) markStopped(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return
	}
	t.cancel()
	t.sub.Unsubscribe()
	t.state = Stopped
	t.sub, t.cancel, t.done = nil, nil, nil
}

// HandleLocationUpdate persists p, then applies the emergency policy
func (t *Tracker) HandleLocationUpdate(ctx context.Context, p location.Point) Decision {
	t.handleMu.Lock()
	defer t.handleMu.Unlock()

	t.locations.SaveLocation(ctx, p)

	active := t.locations.GetEmergencyActive()
	// an off/on cycle between two updates still starts a new emergency
	if activation := t.locations.Activations(); activation != t.activation {
		t.activation = activation
		t.baseline = nil
	}
	if active != t.cachedEmergency {
		t.cachedEmergency = active
		if !active {
			t.baseline = nil
		}
		t.logger.Info("Emergency state changed", zap.Bool("active", active))
		for _, fn := range t.observers {
			fn(active)
		}
	}

	decision := Decision{EmergencyActive: active, DistanceMeters: -1}
	if !active {
		return decision
	}

	if t.baseline == nil {
		decision.FirstSample = true
		decision.Dispatched = true
	} else {
		decision.DistanceMeters = t.baseline.DistanceTo(p)
		decision.Dispatched = decision.DistanceMeters > t.config.DispatchThresholdMeters
	}

	t.logger.Debug("Location update evaluated",
		zap.Float64("lat", p.Latitude),
		zap.Float64("lng", p.Longitude),
		zap.Float64("distance_m", decision.DistanceMeters),
		zap.Bool("first_sample", decision.FirstSample),
		zap.Bool("dispatch", decision.Dispatched))

	if !decision.Dispatched {
		return decision
	}

	contacts := t.contacts.List()
	routes := t.routes.List()
	baseline := p
	t.baseline = &baseline

	dctx := context.WithoutCancel(ctx)
	t.inflight.Go(func() {
		t.dispatcher.SendEmergencyMessage(dctx, p, contacts, routes)
	})
	return decision
}
