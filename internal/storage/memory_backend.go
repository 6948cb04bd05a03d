package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is returned by a MemoryBackend whose writes were made to fail
var ErrInjected = errors.New("storage: injected write failure")

// MemoryBackend keeps values in process memory. It is used when the daemon
// runs without Redis and by tests, which can make writes fail on demand.
type MemoryBackend struct {
	mu         sync.Mutex
	values     map[string]string
	hashes     map[string]map[string]string
	failWrites int // remaining writes to fail; negative fails forever
	writes     int
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkWrite(); err != nil {
		return err
	}
	b.values[key] = value
	return nil
}

func (b *MemoryBackend) HGetAll(_ context.Context, key string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.hashes[key]))
	for k, v := range b.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) HSet(_ context.Context, key string, fields map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkWrite(); err != nil {
		return err
	}
	h, ok := b.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		b.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// FailWrites makes the next n writes fail. n < 0 fails all writes until
// FailWrites(0) is called.
func (b *MemoryBackend) FailWrites(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites = n
}

// Writes returns the number of write attempts seen so far
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Corrupt overwrites a raw value, bypassing any encoding
func (b *MemoryBackend) Corrupt(key, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = raw
}

// CorruptField overwrites one hash field
func (b *MemoryBackend) CorruptField(key, field, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hashes[key] == nil {
		b.hashes[key] = make(map[string]string)
	}
	b.hashes[key][field] = raw
}

func (b *MemoryBackend) checkWrite() error {
	b.writes++
	switch {
	case b.failWrites < 0:
		return ErrInjected
	case b.failWrites > 0:
		b.failWrites--
		return ErrInjected
	}
	return nil
}
