package tracking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Request describes how often and how far apart updates should arrive
type Request struct {
	Interval          time.Duration
	FastestInterval   time.Duration
	MaxDelay          time.Duration
	MinDistanceMeters float64
}

// Subscription is a live stream of location updates
type Subscription interface {
	Updates() <-chan location.Point
	Unsubscribe()
}

// Provider is the platform location source
type Provider interface {
	Subscribe(ctx context.Context, req Request) (Subscription, error)
	LastKnown(ctx context.Context) (location.Point, bool, error)
}

// PushProvider is a Provider fed by fixes the device reports over the API.
// Each subscription applies its own minimum-distance and fastest-interval
// filter before a fix is delivered.
type PushProvider struct {
	logger *logger.Logger

	mu        sync.Mutex
	lastKnown *location.Point
	subs      map[*pushSubscription]struct{}
}

// NewPushProvider creates an empty provider
func NewPushProvider(log *logger.Logger) *PushProvider {
	return &PushProvider{
		logger: log.WithComponent("push-provider"),
		subs:   make(map[*pushSubscription]struct{}),
	}
}

// Report feeds a fix into every active subscription
func (p *PushProvider) Report(fix location.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastKnown = &fix
	for sub := range p.subs {
		sub.offer(fix)
	}
}

// Subscribe implements Provider
func (p *PushProvider) Subscribe(_ context.Context, req Request) (Subscription, error) {
	limit := rate.Inf
	if req.FastestInterval > 0 {
		limit = rate.Every(req.FastestInterval)
	}

	sub := &pushSubscription{
		provider: p,
		req:      req,
		limiter:  rate.NewLimiter(limit, 1),
		updates:  make(chan location.Point, 1),
	}

	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("Location subscription registered",
		zap.Duration("interval", req.Interval),
		zap.Duration("fastest_interval", req.FastestInterval),
		zap.Float64("min_distance_m", req.MinDistanceMeters))
	return sub, nil
}

// LastKnown implements Provider
func (p *PushProvider) LastKnown(_ context.Context) (location.Point, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastKnown == nil {
		return location.Point{}, false, nil
	}
	return *p.lastKnown, true, nil
}

// Subscribers returns the number of active subscriptions
func (p *PushProvider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *PushProvider) remove(sub *pushSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[sub]; !ok {
		return
	}
	delete(p.subs, sub)
	close(sub.updates)
}

type pushSubscription struct {
	provider  *PushProvider
	req       Request
	limiter   *rate.Limiter
	delivered *location.Point
	updates   chan location.Point
}

func (s *pushSubscription) Updates() <-chan location.Point {
	return s.updates
}

func (s *pushSubscription) Unsubscribe() {
	s.provider.remove(s)
}

// offer is called with the provider lock held
func (s *pushSubscription) offer(fix location.Point) {
	if s.delivered != nil && s.req.MinDistanceMeters > 0 &&
		s.delivered.DistanceTo(fix) < s.req.MinDistanceMeters {
		return
	}
	if !s.limiter.Allow() {
		return
	}

	s.delivered = &fix
	// keep only the freshest pending fix
	select {
	case <-s.updates:
	default:
	}
	s.updates <- fix
}
