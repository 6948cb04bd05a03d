package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

func TestNew(t *testing.T) {
	start := location.Point{Latitude: 41.0, Longitude: 29.0}
	end := location.Point{Latitude: 41.1, Longitude: 29.1}

	r, err := New("Belgrad Ormanı", start, end, nil, "hike", 1700000000000)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.NotNil(t, r.Waypoints)
	assert.EqualValues(t, 1700000000000, r.CreatedAtMillis)

	_, err = New("  ", start, end, nil, "", 0)
	assert.Error(t, err)

	_, err = New("bad", location.Point{Latitude: 100}, end, nil, "", 0)
	assert.Error(t, err)

	_, err = New("bad", start, end, []location.Point{{Longitude: 200}}, "", 0)
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := NewStore(ctx, backend, logger.NewNop())

	routes := []PlannedRoute{
		{
			ID:              "r1",
			Name:            "Sabah koşusu",
			StartLocation:   location.Point{Latitude: 41.01, Longitude: 28.97},
			EndLocation:     location.Point{Latitude: 41.02, Longitude: 28.98, Address: "Galata"},
			Waypoints:       []location.Point{{Latitude: 41.015, Longitude: 28.975}},
			Description:     "sahil yolu",
			CreatedAtMillis: 1700000000000,
		},
		{
			ID:              "r2",
			Name:            "Eve dönüş",
			StartLocation:   location.Point{Latitude: 40.0, Longitude: 29.0},
			EndLocation:     location.Point{Latitude: 40.5, Longitude: 29.5},
			Waypoints:       []location.Point{},
			CreatedAtMillis: 1700000001000,
		},
	}
	for _, r := range routes {
		require.True(t, s.Add(ctx, r))
	}

	assert.Equal(t, routes, NewStore(ctx, backend, logger.NewNop()).List())
}

func TestStore_CorruptBlob(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.Corrupt(storage.KeyRoutes, `{"id":"not-a-list"}`)

	s := NewStore(context.Background(), backend, logger.NewNop())
	assert.Empty(t, s.List())
}
