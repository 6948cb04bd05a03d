// Package permission tracks which device capabilities the user has granted.
package permission

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Capability names a platform permission
type Capability string

const (
	Location Capability = "location"
	SMS      Capability = "sms"
	Contacts Capability = "contacts"
)

// All lists every known capability
var All = []Capability{Location, SMS, Contacts}

// ParseCapability validates a capability name
func ParseCapability(s string) (Capability, error) {
	for _, c := range All {
		if string(c) == s {
			return c, nil
		}
	}
	return "", shared.ErrInvalidInput("unknown capability: " + s)
}

// Checker answers whether a capability is currently granted
type Checker interface {
	Granted(c Capability) bool
}

// Registry is a persisted Checker. Initial grants come from configuration
// and are overridden by anything stored.
type Registry struct {
	backend storage.Backend
	logger  *logger.Logger

	mu      sync.RWMutex
	granted map[Capability]bool
}

// NewRegistry creates a registry seeded with defaults
func NewRegistry(ctx context.Context, backend storage.Backend, defaults map[Capability]bool, log *logger.Logger) *Registry {
	r := &Registry{
		backend: backend,
		logger:  log.WithComponent("permission-registry"),
		granted: make(map[Capability]bool, len(All)),
	}
	for _, c := range All {
		r.granted[c] = defaults[c]
	}

	stored, err := backend.HGetAll(ctx, storage.KeyPermissions)
	if err != nil {
		r.logger.Error("Failed to load permissions, using defaults", zap.Error(err))
		return r
	}
	for k, v := range stored {
		c, err := ParseCapability(k)
		if err != nil {
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			r.granted[c] = b
		}
	}
	return r
}

// Granted implements Checker
func (r *Registry) Granted(c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.granted[c]
}

// Set persists a grant or revocation
func (r *Registry) Set(ctx context.Context, c Capability, granted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.HSet(ctx, storage.KeyPermissions, map[string]string{
		string(c): strconv.FormatBool(granted),
	})
	if err != nil {
		r.logger.Error("Failed to persist permission", zap.String("capability", string(c)), zap.Error(err))
		return shared.WrapDomainError(err, shared.ErrCodeStorageWriteFailed, "persist permission")
	}

	r.granted[c] = granted
	r.logger.Info("Permission updated", zap.String("capability", string(c)), zap.Bool("granted", granted))
	return nil
}

// Snapshot returns the current grants
func (r *Registry) Snapshot() map[Capability]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Capability]bool, len(r.granted))
	for k, v := range r.granted {
		out[k] = v
	}
	return out
}

// Static is a fixed Checker, handy for tests
type Static map[Capability]bool

func (s Static) Granted(c Capability) bool {
	return s[c]
}
