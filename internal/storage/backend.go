// Package storage provides the durable key/value layer behind the stores.
package storage

import (
	"context"
)

// Backend is the durable medium a store flushes to. Every method is a single
// write or read; HSet applies all fields as one atomic unit.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// Well-known keys, relative to the backend namespace
const (
	KeyTrackingState = "tracking_state"
	KeyContacts      = "emergency_contacts"
	KeyRoutes        = "planned_routes"
	KeyPermissions   = "permissions"
)
