package route

import (
	"context"
	"strings"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

// PlannedRoute is a trip the user expects to take. Immutable once created.
type PlannedRoute struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	StartLocation   location.Point   `json:"startLocation"`
	EndLocation     location.Point   `json:"endLocation"`
	Waypoints       []location.Point `json:"waypoints"`
	Description     string           `json:"description"`
	CreatedAtMillis shared.Millis    `json:"createdAtMillis"`
}

// New creates a route with a fresh id and creation time
func New(name string, start, end location.Point, waypoints []location.Point, description string, now shared.Millis) (PlannedRoute, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PlannedRoute{}, shared.ErrInvalidInput("route name is required")
	}
	if err := start.Validate(); err != nil {
		return PlannedRoute{}, err
	}
	if err := end.Validate(); err != nil {
		return PlannedRoute{}, err
	}
	for _, wp := range waypoints {
		if err := wp.Validate(); err != nil {
			return PlannedRoute{}, err
		}
	}
	if waypoints == nil {
		waypoints = []location.Point{}
	}

	return PlannedRoute{
		ID:              shared.NewID().String(),
		Name:            name,
		StartLocation:   start,
		EndLocation:     end,
		Waypoints:       waypoints,
		Description:     description,
		CreatedAtMillis: now,
	}, nil
}

// Store holds the planned route list
type Store struct {
	*storage.Collection[PlannedRoute]
}

// NewStore loads the persisted route list
func NewStore(ctx context.Context, backend storage.Backend, log *logger.Logger) *Store {
	return &Store{
		Collection: storage.NewCollection(ctx, backend, storage.KeyRoutes,
			func(r PlannedRoute) string { return r.ID },
			log.WithComponent("route-store")),
	}
}
