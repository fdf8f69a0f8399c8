package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// filePerm is the permission used for the persisted state file.
const filePerm = 0o600

// FileBridge implements Bridge on a single JSON object file. Every write
// rewrites the whole file through a temporary file and a rename.
type FileBridge struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewFileBridge opens the state file at path, creating its directory if
// needed. A missing file starts empty. A corrupt file is logged and
// replaced on the next write; it never fails the open.
func NewFileBridge(path string, logger *zap.Logger) (*FileBridge, error) {
	if path == "" {
		return nil, fmt.Errorf("file bridge: path must not be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("file bridge: creating directory: %w", err)
		}
	}

	b := &FileBridge{
		path:   path,
		logger: logger,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("file bridge: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return b, nil
	}

	if err := json.Unmarshal(data, &b.values); err != nil {
		logger.Warn("discarding corrupt state file",
			zap.String("path", path),
			zap.Error(err),
		)
		b.values = make(map[string]string)
	}

	return b, nil
}

// Get retrieves the value stored under key.
func (b *FileBridge) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	if key == "" {
		return "", false, ErrInvalidKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", false, ErrClosed
	}

	value, exists := b.values[key]

	return value, exists, nil
}

// Set stores value under key and flushes the file.
func (b *FileBridge) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	if key == "" {
		return ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	previous, existed := b.values[key]
	b.values[key] = value

	if err := b.flushLocked(); err != nil {
		if existed {
			b.values[key] = previous
		} else {
			delete(b.values, key)
		}
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

// Remove deletes key and flushes the file.
func (b *FileBridge) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}

	if key == "" {
		return ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	previous, existed := b.values[key]
	if !existed {
		return nil
	}

	delete(b.values, key)

	if err := b.flushLocked(); err != nil {
		b.values[key] = previous
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}

// Close marks the bridge closed. The file is already up to date.
func (b *FileBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

// Path returns the backing file path.
func (b *FileBridge) Path() string {
	return b.path
}

// flushLocked writes the current map to disk. Caller must hold b.mu.
func (b *FileBridge) flushLocked() error {
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}

	return nil
}
