package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

func fixedClock(ms int64) shared.Clock {
	return func() shared.Millis { return shared.Millis(ms) }
}

func newTestStore(t *testing.T, backend storage.Backend, opts ...StoreOption) *Store {
	t.Helper()
	opts = append([]StoreOption{WithFlagRetry(3, time.Millisecond)}, opts...)
	return NewStore(context.Background(), backend, logger.NewNop(), opts...)
}

func TestStore_Defaults(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	_, ok := s.GetLocation()
	assert.False(t, ok)
	assert.False(t, s.GetEmergencyActive())
	assert.True(t, s.GetLastUpdateTimestamp().IsZero())
}

func TestStore_SaveLocationRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := newTestStore(t, backend, WithClock(fixedClock(1700000000000)))

	p := Point{Latitude: 41.015137, Longitude: 28.979530, Address: "Sultanahmet"}
	s.SaveLocation(ctx, p)

	got, ok := s.GetLocation()
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, shared.Millis(1700000000000), s.GetLastUpdateTimestamp())

	reloaded := newTestStore(t, backend)
	got, ok = reloaded.GetLocation()
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, shared.Millis(1700000000000), reloaded.GetLastUpdateTimestamp())
}

func TestStore_SaveLocationFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := newTestStore(t, backend, WithClock(fixedClock(1000)))

	first := Point{Latitude: 1, Longitude: 2}
	s.SaveLocation(ctx, first)

	backend.FailWrites(1)
	s.SaveLocation(ctx, Point{Latitude: 3, Longitude: 4})

	got, _ := s.GetLocation()
	assert.Equal(t, first, got)
	assert.Equal(t, shared.Millis(1000), s.GetLastUpdateTimestamp())
}

func TestStore_CorruptLocationIsAbsent(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.CorruptField(storage.KeyTrackingState, fieldLocation, "{not json")
	backend.CorruptField(storage.KeyTrackingState, fieldLastUpdate, "12345")
	backend.CorruptField(storage.KeyTrackingState, fieldEmergencyActive, "true")

	s := newTestStore(t, backend)

	_, ok := s.GetLocation()
	assert.False(t, ok)
	assert.True(t, s.GetLastUpdateTimestamp().IsZero())
	assert.True(t, s.GetEmergencyActive())
}

func TestStore_ActivationsCountOffToOnWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryBackend())
	assert.Zero(t, s.Activations())

	require.NoError(t, s.SetEmergencyActive(ctx, true))
	require.NoError(t, s.SetEmergencyActive(ctx, true))
	assert.Equal(t, uint64(1), s.Activations())

	require.NoError(t, s.SetEmergencyActive(ctx, false))
	assert.Equal(t, uint64(1), s.Activations())

	require.NoError(t, s.SetEmergencyActive(ctx, true))
	assert.Equal(t, uint64(2), s.Activations())
}

func TestStore_FailedActivationIsNotCounted(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := newTestStore(t, backend, WithFlagRetry(1, time.Millisecond))

	backend.FailWrites(1)
	require.Error(t, s.SetEmergencyActive(ctx, true))
	assert.Zero(t, s.Activations())
}

func TestStore_SetEmergencyActiveRetries(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := newTestStore(t, backend)

	backend.FailWrites(2)
	require.NoError(t, s.SetEmergencyActive(ctx, true))
	assert.True(t, s.GetEmergencyActive())
	assert.Equal(t, 3, backend.Writes())

	reloaded := newTestStore(t, backend)
	assert.True(t, reloaded.GetEmergencyActive())
}

func TestStore_SetEmergencyActiveGivesUp(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := newTestStore(t, backend)

	backend.FailWrites(-1)
	err := s.SetEmergencyActive(ctx, true)
	require.Error(t, err)
	assert.Equal(t, "STORAGE_WRITE_FAILED", shared.ErrorCode(err))
	assert.False(t, s.GetEmergencyActive())
	assert.GreaterOrEqual(t, backend.Writes(), 3)
}

func TestStore_EmergencyFlagIndependentOfLocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryBackend(), WithClock(fixedClock(500)))

	require.NoError(t, s.SetEmergencyActive(ctx, true))
	assert.True(t, s.GetLastUpdateTimestamp().IsZero())

	s.SaveLocation(ctx, Point{Latitude: 10, Longitude: 10})
	assert.True(t, s.GetEmergencyActive())
}

func TestStore_SubscribeSeesPublishedState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryBackend(), WithClock(fixedClock(42)))

	ch, cancel := s.Subscribe()
	defer cancel()
	initial := <-ch
	assert.Nil(t, initial.Current)

	s.SaveLocation(ctx, Point{Latitude: 5, Longitude: 6})
	st := <-ch
	require.NotNil(t, st.Current)
	assert.Equal(t, 5.0, st.Current.Latitude)
	assert.Equal(t, shared.Millis(42), st.LastUpdate)
}

func TestTrackingState_Record(t *testing.T) {
	st := TrackingState{
		Current:         &Point{Latitude: 1.5, Longitude: 2.5, Address: "x"},
		LastUpdate:      99,
		EmergencyActive: true,
	}
	assert.Equal(t, Record{
		Latitude:                  1.5,
		Longitude:                 2.5,
		Address:                   "x",
		LastUpdateTimestampMillis: 99,
		EmergencyActive:           true,
	}, st.Record())

	assert.Equal(t, Record{}, TrackingState{}.Record())
}

func TestPoint_Validate(t *testing.T) {
	_, err := NewPoint(91, 0)
	assert.Error(t, err)
	_, err = NewPoint(0, -181)
	assert.Error(t, err)
	p, err := NewPoint(-90, 180)
	require.NoError(t, err)
	assert.Equal(t, "-90.000000,180.000000", p.String())
}
