package location

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Hash fields of the tracking state record
const (
	fieldLocation        = "location"
	fieldLastUpdate      = "last_update"
	fieldEmergencyActive = "emergency_active"
)

// Store owns the TrackingState. Each mutation is flushed to the backend
// before the observable value changes.
type Store struct {
	backend storage.Backend
	logger  *logger.Logger
	now     shared.Clock

	flagAttempts uint
	flagBackoff  time.Duration

	mu    sync.Mutex // serializes writers
	state *shared.Value[TrackingState]

	activations atomic.Uint64 // false→true flag writes since NewStore
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the timestamp source
func WithClock(clock shared.Clock) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithFlagRetry sets how the emergency flag write is retried
func WithFlagRetry(attempts uint, step time.Duration) StoreOption {
	return func(s *Store) {
		s.flagAttempts = attempts
		s.flagBackoff = step
	}
}

// NewStore creates the store and loads the persisted state
func NewStore(ctx context.Context, backend storage.Backend, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		backend:      backend,
		logger:       log.WithComponent("location-store"),
		now:          shared.NowMillis,
		flagAttempts: 3,
		flagBackoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = shared.NewValue(s.load(ctx))
	return s
}

// load reads the record; unreadable fields fall back to their defaults
func (s *Store) load(ctx context.Context) TrackingState {
	var state TrackingState

	fields, err := s.backend.HGetAll(ctx, storage.KeyTrackingState)
	if err != nil {
		s.logger.Error("Failed to load tracking state, starting empty", zap.Error(err))
		return state
	}

	if raw, ok := fields[fieldLocation]; ok {
		var p Point
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.Warn("Stored location is corrupt, ignoring", zap.Error(err))
		} else {
			state.Current = &p
		}
	}
	// the timestamp belongs to the location and is dropped with it
	if raw, ok := fields[fieldLastUpdate]; ok && state.Current != nil {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			state.LastUpdate = shared.Millis(ts)
		}
	}
	if raw, ok := fields[fieldEmergencyActive]; ok {
		state.EmergencyActive, _ = strconv.ParseBool(raw)
	}

	s.logger.Debug("Tracking state loaded",
		zap.Bool("has_location", state.Current != nil),
		zap.Int64("last_update", int64(state.LastUpdate)),
		zap.Bool("emergency_active", state.EmergencyActive))

	return state
}

// SaveLocation persists p with the current timestamp as one write. A failed
// write is logged and leaves the in-memory state untouched.
func (s *Store) SaveLocation(ctx context.Context, p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("Failed to encode location", zap.Error(err))
		return
	}
	ts := s.now()

	err = s.backend.HSet(ctx, storage.KeyTrackingState, map[string]string{
		fieldLocation:   string(data),
		fieldLastUpdate: strconv.FormatInt(int64(ts), 10),
	})
	if err != nil {
		s.logger.Error("Failed to persist location", zap.Error(err))
		return
	}

	next := s.state.Get()
	next.Current = &p
	next.LastUpdate = ts
	s.state.Set(next)
}

// SetEmergencyActive persists and publishes the flag. The write is retried;
// if every attempt fails the flag keeps its previous value and the error
// is returned.
func (s *Store) SetEmergencyActive(ctx context.Context, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := map[string]string{fieldEmergencyActive: strconv.FormatBool(active)}
	err := retry.Retry(func(attempt uint) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.backend.HSet(ctx, storage.KeyTrackingState, fields); err != nil {
			s.logger.Warn("Emergency flag write failed",
				zap.Uint("attempt", attempt),
				zap.Bool("active", active),
				zap.Error(err))
			return err
		}
		return nil
	},
		strategy.Limit(s.flagAttempts),
		strategy.Backoff(backoff.Linear(s.flagBackoff)),
	)
	if err != nil {
		s.logger.Error("Failed to persist emergency flag", zap.Bool("active", active), zap.Error(err))
		return shared.WrapDomainError(err, shared.ErrCodeStorageWriteFailed, "persist emergency flag")
	}

	next := s.state.Get()
	if active && !next.EmergencyActive {
		s.activations.Add(1)
	}
	next.EmergencyActive = active
	s.state.Set(next)
	return nil
}

// Activations counts the writes that turned the emergency flag on. A reader
// that sees it change knows a new emergency began, even if it never
// observed the flag off in between.
func (s *Store) Activations() uint64 {
	return s.activations.Load()
}

// GetLocation returns the last stored point
func (s *Store) GetLocation() (Point, bool) {
	st := s.state.Get()
	if st.Current == nil {
		return Point{}, false
	}
	return *st.Current, true
}

// GetEmergencyActive defaults to false
func (s *Store) GetEmergencyActive() bool {
	return s.state.Get().EmergencyActive
}

// GetLastUpdateTimestamp is zero if no location was ever stored
func (s *Store) GetLastUpdateTimestamp() shared.Millis {
	return s.state.Get().LastUpdate
}

// State returns a snapshot of the whole record
func (s *Store) State() TrackingState {
	return s.state.Get()
}

// Subscribe streams the latest state, starting with the current one
func (s *Store) Subscribe() (<-chan TrackingState, func()) {
	return s.state.Subscribe()
}
