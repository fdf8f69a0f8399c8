// Package kv provides the persistent key-value bridge the client stores
// mirror their state into, with memory, file, Redis and SQLite backends.
package kv

import (
	"context"
	"errors"
)

// Bridge errors.
var (
	ErrInvalidKey = errors.New("invalid key")
	ErrClosed     = errors.New("bridge is closed")
)

// Well-known keys written by the client stores.
const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
	KeyCart      = "cart"
)

// Bridge is a named string value store. Writers to the same key overwrite
// each other; the last write wins.
type Bridge interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the bridge.
	Close() error
}
