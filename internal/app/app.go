// Package app assembles the daemon: storage, stores, dispatch, tracking,
// the emergency controller and the event bus, all injected explicitly.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/auth"
	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
	"github.com/danghamo/rescueme/internal/emergency"
	"github.com/danghamo/rescueme/internal/events"
	"github.com/danghamo/rescueme/internal/permission"
	"github.com/danghamo/rescueme/internal/smsgw"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/internal/tracking"
	"github.com/danghamo/rescueme/pkg/config"
	"github.com/danghamo/rescueme/pkg/logger"
	"github.com/danghamo/rescueme/pkg/redisx"
)

// Issuer is the JWT issuer for device tokens
const Issuer = "rescued"

// App holds every long-lived component of the daemon
type App struct {
	Config      *config.Config
	Redis       *redisx.Client // nil with the memory storage driver
	Backend     storage.Backend
	Permissions *permission.Registry
	Locations   *location.Store
	Contacts    *contact.Store
	Routes      *route.Store
	Provider    *tracking.PushProvider
	Gateway     *dispatch.Gateway
	Tracker     *tracking.Tracker
	Emergency   *emergency.Controller
	Bus         *events.Bus
	Bridge      *events.Bridge
	Pairer      *auth.Pairer

	logger  *logger.Logger
	workers conc.WaitGroup
	cancel  context.CancelFunc
}

// Option customizes assembly, mostly for tests
type Option func(*options)

type options struct {
	sender  dispatch.Sender
	backend storage.Backend
}

// WithSender replaces the configured SMS sender
func WithSender(sender dispatch.Sender) Option {
	return func(o *options) { o.sender = sender }
}

// WithBackend replaces the configured storage backend
func WithBackend(backend storage.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// New builds the component graph from configuration. Stores load their
// persisted state here.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, logger: log.WithComponent("app")}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = a.openBackend(cfg, log)
		if err != nil {
			return nil, err
		}
	}
	a.Backend = backend

	bus, err := events.NewBus(a.busConfig(cfg), log)
	if err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	a.Bus = bus
	a.Bridge = events.NewBridge(bus, log)

	a.Permissions = permission.NewRegistry(ctx, backend, map[permission.Capability]bool{
		permission.Location: cfg.Permissions.Location,
		permission.SMS:      cfg.Permissions.SMS,
		permission.Contacts: cfg.Permissions.Contacts,
	}, log)
	a.Locations = location.NewStore(ctx, backend, log)
	a.Contacts = contact.NewStore(ctx, backend, log)
	a.Routes = route.NewStore(ctx, backend, log)

	sender := o.sender
	if sender == nil {
		sender = a.newSender(cfg, log)
	}
	a.Gateway = dispatch.NewGateway(sender, a.Permissions, dispatch.Config{
		MaxParallel: cfg.Dispatch.MaxParallel,
		SendTimeout: cfg.Dispatch.SendTimeout,
	}, log)
	a.Gateway.OnReport(a.Bridge.DispatchHook())

	a.Provider = tracking.NewPushProvider(log)
	a.Tracker = tracking.NewTracker(a.Provider, a.Locations, a.Contacts, a.Routes, a.Gateway, a.Permissions, TrackingConfig(cfg.Tracking), log)
	a.Emergency = emergency.NewController(a.Locations, a.Contacts, a.Routes, a.Gateway, a.Tracker, log)

	a.Pairer = auth.NewPairer(cfg.Auth.PinHash, auth.NewJWTService(cfg.Auth.JWTSecret, Issuer, cfg.Auth.JWTExpiration))

	return a, nil
}

// TrackingConfig maps configuration onto the loop tunables
func TrackingConfig(c config.TrackingConfig) tracking.Config {
	return tracking.Config{
		Request: tracking.Request{
			Interval:          c.UpdateInterval,
			FastestInterval:   c.FastestInterval,
			MaxDelay:          2 * c.UpdateInterval,
			MinDistanceMeters: c.MinDistanceMeters,
		},
		DispatchThresholdMeters: c.DispatchThresholdM,
	}
}

func (a *App) openBackend(cfg *config.Config, log *logger.Logger) (storage.Backend, error) {
	if cfg.Storage.Driver == "memory" {
		a.logger.Warn("Using in-memory storage, state is lost on restart")
		return storage.NewMemoryBackend(), nil
	}

	var clientOpts []redisx.ClientOption
	if cfg.Redis.PrivateDB {
		clientOpts = append(clientOpts, redisx.WithPrivate())
	}
	client, err := redisx.NewClient(cfg.Redis.URL, log, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = client
	return storage.NewRedisBackend(client, cfg.Storage.Namespace), nil
}

func (a *App) busConfig(cfg *config.Config) events.BusConfig {
	if a.Redis == nil {
		return events.BusConfig{Driver: events.DriverMemory, TopicPrefix: cfg.Storage.Namespace + "-events"}
	}

	// one consumer group per daemon so every instance sees every event
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return events.BusConfig{
		Driver:        events.DriverRedis,
		Redis:         a.Redis.Client,
		ConsumerGroup: fmt.Sprintf("%s-%s", cfg.Redis.ConsumerGroup, hostname),
		TopicPrefix:   cfg.Storage.Namespace + "-events",
	}
}

func (a *App) newSender(cfg *config.Config, log *logger.Logger) dispatch.Sender {
	if cfg.Dispatch.SMSDriver == "stream" && a.Redis != nil {
		return smsgw.NewStreamSender(a.Bus.Publisher(), cfg.Dispatch.SMSTopic, log)
	}
	return smsgw.NewLogSender(log)
}

// Start begins the background work: store change events, the tracking
// indicator and, when configured, the tracking loop itself. A missing
// location permission is logged and does not fail Start.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.workers.Go(func() {
		a.Bridge.WatchTrackingState(runCtx, a.Locations)
	})
	a.Tracker.OnEmergencyChange(a.Bridge.IndicatorObserver(runCtx))

	if !a.Config.Tracking.AutoStart {
		return nil
	}
	if err := a.StartTracking(ctx); err != nil {
		a.logger.Warn("Tracking not started", zap.Error(err))
	}
	return nil
}

// StartTracking starts the loop and shows the tracking indicator
func (a *App) StartTracking(ctx context.Context) error {
	if err := a.Tracker.Start(ctx); err != nil {
		return err
	}
	a.Bridge.IndicatorObserver(ctx)(a.Locations.GetEmergencyActive())
	return nil
}

// StopTracking stops the loop and hides the tracking indicator
func (a *App) StopTracking(ctx context.Context) {
	a.Tracker.Stop()
	a.Bridge.HideIndicator(ctx)
}

// Close stops tracking, waits for in-flight dispatches and releases the
// bus and the Redis connection
func (a *App) Close() error {
	a.Tracker.Stop()
	a.Tracker.Wait()

	if a.cancel != nil {
		a.cancel()
	}
	a.workers.Wait()

	var firstErr error
	if err := a.Bus.Close(); err != nil {
		a.logger.Error("Failed to close event bus", zap.Error(err))
		firstErr = err
	}
	if err := a.closeRedis(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) closeRedis() error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}
