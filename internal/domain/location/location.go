package location

import (
	"fmt"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/pkg/geo"
)

// Point is an immutable geographic fix
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// NewPoint creates a validated point
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks WGS84 ranges
func (p Point) Validate() error {
	if !geo.ValidLatLng(p.Latitude, p.Longitude) {
		return shared.ErrInvalidInput(fmt.Sprintf("coordinates out of range: %f,%f", p.Latitude, p.Longitude))
	}
	return nil
}

// DistanceTo returns the great-circle distance to other in meters
func (p Point) DistanceTo(other Point) float64 {
	return geo.DistanceMeters(p.Latitude, p.Longitude, other.Latitude, other.Longitude)
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// TrackingState is the persisted record owned by the Store.
// LastUpdate changes exactly when Current does.
type TrackingState struct {
	Current         *Point        `json:"current_location,omitempty"`
	LastUpdate      shared.Millis `json:"last_update_timestamp"`
	EmergencyActive bool          `json:"emergency_active"`
}

// Record is the flat wire form of TrackingState
type Record struct {
	Latitude                  float64 `json:"latitude"`
	Longitude                 float64 `json:"longitude"`
	Address                   string  `json:"address"`
	LastUpdateTimestampMillis int64   `json:"lastUpdateTimestampMillis"`
	EmergencyActive           bool    `json:"emergencyActive"`
}

// Record flattens the state; coordinates are zero when no fix was stored
func (s TrackingState) Record() Record {
	r := Record{
		LastUpdateTimestampMillis: int64(s.LastUpdate),
		EmergencyActive:           s.EmergencyActive,
	}
	if s.Current != nil {
		r.Latitude = s.Current.Latitude
		r.Longitude = s.Current.Longitude
		r.Address = s.Current.Address
	}
	return r
}
