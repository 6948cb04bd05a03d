package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/pkg/logger"
)

// Collection is an ordered list of T mirrored to a single JSON blob.
// A blob that cannot be decoded loads as an empty list.
type Collection[T any] struct {
	backend Backend
	key     string
	idOf    func(T) string
	logger  *logger.Logger

	mu    sync.Mutex
	items *shared.Value[[]T]
}

// NewCollection loads the collection stored at key
func NewCollection[T any](ctx context.Context, backend Backend, key string, idOf func(T) string, log *logger.Logger) *Collection[T] {
	c := &Collection[T]{
		backend: backend,
		key:     key,
		idOf:    idOf,
		logger:  log.WithField("collection", key),
	}
	c.items = shared.NewValue(c.load(ctx))
	return c
}

func (c *Collection[T]) load(ctx context.Context) []T {
	raw, found, err := c.backend.Get(ctx, c.key)
	if err != nil {
		c.logger.Error("Failed to load collection, starting empty", zap.Error(err))
		return []T{}
	}
	if !found || raw == "" {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.Warn("Stored collection is corrupt, starting empty", zap.Error(err))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// List returns a copy of the current items in insertion order
func (c *Collection[T]) List() []T {
	items := c.items.Get()
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// Len returns the number of items
func (c *Collection[T]) Len() int {
	return len(c.items.Get())
}

// Find returns the item with the given id
func (c *Collection[T]) Find(id string) (T, bool) {
	return lo.Find(c.items.Get(), func(item T) bool {
		return c.idOf(item) == id
	})
}

// Add appends item and persists the whole list. It reports whether the
// write succeeded; on failure the in-memory list is unchanged.
func (c *Collection[T]) Add(ctx context.Context, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.items.Get()
	next := make([]T, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, item)

	return c.commit(ctx, next)
}

// Remove drops every item with the given id and persists the list
func (c *Collection[T]) Remove(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := lo.Filter(c.items.Get(), func(item T, _ int) bool {
		return c.idOf(item) != id
	})

	return c.commit(ctx, next)
}

// Subscribe streams the latest list, starting with the current one
func (c *Collection[T]) Subscribe() (<-chan []T, func()) {
	return c.items.Subscribe()
}

func (c *Collection[T]) commit(ctx context.Context, next []T) bool {
	data, err := json.Marshal(next)
	if err != nil {
		c.logger.Error("Failed to encode collection", zap.Error(err))
		return false
	}
	if err := c.backend.Set(ctx, c.key, string(data)); err != nil {
		c.logger.Error("Failed to persist collection", zap.Error(err))
		return false
	}

	c.items.Set(next)
	c.logger.Debug("Collection persisted", zap.Int("count", len(next)))
	return true
}
