// Package dispatch sends the emergency message to every contact.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
	"github.com/danghamo/rescueme/internal/message"
	"github.com/danghamo/rescueme/internal/permission"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Sender is the platform text-message transport
type Sender interface {
	Send(ctx context.Context, phone, body string) error
	SendMultipart(ctx context.Context, phone string, parts []string) error
	// Divide splits body into ordered transport segments
	Divide(body string) []string
}

// ReportHook observes every finished emergency dispatch
type ReportHook func(ctx context.Context, report Report)

// Config holds Gateway tunables
type Config struct {
	MaxParallel int
	SendTimeout time.Duration
}

// Gateway composes the message once and fans it out to each recipient.
// A failure for one recipient never affects the others.
type Gateway struct {
	sender Sender
	perms  permission.Checker
	logger *logger.Logger
	config Config
	hooks  []ReportHook
}

// NewGateway creates a new dispatch gateway
func NewGateway(sender Sender, perms permission.Checker, cfg Config, log *logger.Logger) *Gateway {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &Gateway{
		sender: sender,
		perms:  perms,
		logger: log.WithComponent("dispatch-gateway"),
		config: cfg,
	}
}

// OnReport registers a hook called after each SendEmergencyMessage
func (g *Gateway) OnReport(hook ReportHook) {
	g.hooks = append(g.hooks, hook)
}

// SendEmergencyMessage sends the composed message for loc to every contact.
// It never returns an error; the outcome is described by the Report.
func (g *Gateway) SendEmergencyMessage(ctx context.Context, loc location.Point, contacts []contact.EmergencyContact, routes []route.PlannedRoute) Report {
	report := g.send(ctx, loc, contacts, routes)

	g.logger.Info("Emergency dispatch finished",
		zap.String("status", string(report.Status)),
		zap.Int("attempted", report.Attempted),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed))

	for _, hook := range g.hooks {
		hook(ctx, report)
	}
	return report
}

func (g *Gateway) send(ctx context.Context, loc location.Point, contacts []contact.EmergencyContact, routes []route.PlannedRoute) Report {
	if !g.perms.Granted(permission.SMS) {
		g.logger.Error("SMS permission not granted, emergency message not sent")
		return newReport(StatusPermissionDenied, loc, nil)
	}
	if len(contacts) == 0 {
		g.logger.Warn("No emergency contacts found")
		return newReport(StatusNoRecipients, loc, nil)
	}

	body := message.Compose(loc, routes)
	parts := g.sender.Divide(body)

	results := make([]Result, len(contacts))
	p := pool.New().WithMaxGoroutines(g.config.MaxParallel)
	for i, c := range contacts {
		i, c := i, c
		p.Go(func() {
			results[i] = g.deliver(ctx, c, body, parts)
		})
	}
	p.Wait()

	return newReport(StatusSent, loc, results)
}

// deliver sends to a single contact, turning panics into a failed result
func (g *Gateway) deliver(ctx context.Context, c contact.EmergencyContact, body string, parts []string) (res Result) {
	res = Result{
		ContactID: c.ID,
		Name:      c.Name,
		Phone:     c.PhoneNumber,
		Parts:     len(parts),
	}

	defer func() {
		if r := recover(); r != nil {
			res.Delivered = false
			res.Error = fmt.Sprintf("panic: %v", r)
			g.logger.Error("Sender panicked", zap.String("contact", c.Name), zap.Any("panic", r))
		}
	}()

	if g.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.SendTimeout)
		defer cancel()
	}

	var err error
	if len(parts) <= 1 {
		err = g.sender.Send(ctx, c.PhoneNumber, body)
	} else {
		err = g.sender.SendMultipart(ctx, c.PhoneNumber, parts)
	}

	if err != nil {
		res.Error = err.Error()
		g.logger.Error("Failed to send emergency SMS",
			zap.String("contact", c.Name),
			zap.Int("parts", len(parts)),
			zap.Error(err))
		return res
	}

	res.Delivered = true
	g.logger.Info("Emergency SMS sent",
		zap.String("contact", c.Name),
		zap.Int("parts", len(parts)))
	return res
}

// SendTestMessage sends the fixed diagnostic text to phone
func (g *Gateway) SendTestMessage(ctx context.Context, phone string) bool {
	if !g.perms.Granted(permission.SMS) {
		g.logger.Warn("SMS permission not granted, test message not sent")
		return false
	}

	if g.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.SendTimeout)
		defer cancel()
	}

	if err := g.sender.Send(ctx, phone, message.TestText); err != nil {
		g.logger.Error("Failed to send test SMS", zap.Error(err))
		return false
	}
	g.logger.Info("Test SMS sent successfully")
	return true
}
