package kv

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBridge implements Bridge with an in-process map. Values do not
// survive a restart; it backs tests and ephemeral sessions.
type MemoryBridge struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBridge creates a new MemoryBridge instance.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		values: make(map[string]string),
	}
}

// Get retrieves the value stored under key.
func (b *MemoryBridge) Get(ctx context.Context, key string) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, fmt.Errorf("get %q: %w", key, ctx.Err())
	default:
	}

	if key == "" {
		return "", false, ErrInvalidKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	value, exists := b.values[key]

	return value, exists, nil
}

// Set stores value under key.
func (b *MemoryBridge) Set(ctx context.Context, key, value string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("set %q: %w", key, ctx.Err())
	default:
	}

	if key == "" {
		return ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = value

	return nil
}

// Remove deletes key.
func (b *MemoryBridge) Remove(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("remove %q: %w", key, ctx.Err())
	default:
	}

	if key == "" {
		return ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)

	return nil
}

// Len returns the number of stored keys.
func (b *MemoryBridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.values)
}

// Close is a no-op for the in-memory bridge.
func (b *MemoryBridge) Close() error {
	return nil
}
