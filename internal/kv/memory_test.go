package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// runBridgeContract exercises the behaviour every Bridge must share.
func runBridgeContract(t *testing.T, newBridge func(t *testing.T) Bridge) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		// Arrange
		b := newBridge(t)
		ctx := context.Background()

		// Act
		value, ok, err := b.Get(ctx, "absent")

		// Assert
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if ok {
			t.Error("Get() reported a missing key as present")
		}
		if value != "" {
			t.Errorf("Get() value = %q, want empty", value)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		b := newBridge(t)
		ctx := context.Background()

		if err := b.Set(ctx, KeyCart, `[{"id":"a"}]`); err != nil {
			t.Fatalf("Set() unexpected error: %v", err)
		}

		value, ok, err := b.Get(ctx, KeyCart)
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if !ok || value != `[{"id":"a"}]` {
			t.Errorf("Get() = (%q, %v), want stored value", value, ok)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		b := newBridge(t)
		ctx := context.Background()

		_ = b.Set(ctx, KeyAuthToken, "first")
		_ = b.Set(ctx, KeyAuthToken, "second")

		value, _, err := b.Get(ctx, KeyAuthToken)
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if value != "second" {
			t.Errorf("Get() = %q, want second", value)
		}
	})

	t.Run("remove", func(t *testing.T) {
		b := newBridge(t)
		ctx := context.Background()

		_ = b.Set(ctx, KeyUserData, "{}")

		if err := b.Remove(ctx, KeyUserData); err != nil {
			t.Fatalf("Remove() unexpected error: %v", err)
		}

		if _, ok, _ := b.Get(ctx, KeyUserData); ok {
			t.Error("key should be removed")
		}
	})

	t.Run("remove missing key is not an error", func(t *testing.T) {
		b := newBridge(t)

		if err := b.Remove(context.Background(), "absent"); err != nil {
			t.Errorf("Remove() unexpected error: %v", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		b := newBridge(t)
		ctx := context.Background()

		if _, _, err := b.Get(ctx, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Get() error = %v, want ErrInvalidKey", err)
		}
		if err := b.Set(ctx, "", "v"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Set() error = %v, want ErrInvalidKey", err)
		}
		if err := b.Remove(ctx, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Remove() error = %v, want ErrInvalidKey", err)
		}
	})
}

func TestMemoryBridge_Contract(t *testing.T) {
	runBridgeContract(t, func(_ *testing.T) Bridge {
		return NewMemoryBridge()
	})
}

func TestNewMemoryBridge(t *testing.T) {
	// Act
	b := NewMemoryBridge()

	// Assert
	if b == nil {
		t.Fatal("NewMemoryBridge() returned nil")
	}
	if b.values == nil {
		t.Error("values map should be initialized")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestMemoryBridge_ContextCancellation(t *testing.T) {
	// Arrange
	b := NewMemoryBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Act & Assert
	if _, _, err := b.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if err := b.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("Set() error = %v, want context.Canceled", err)
	}
	if err := b.Remove(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Remove() error = %v, want context.Canceled", err)
	}
	if b.Len() != 0 {
		t.Error("cancelled Set() should not store anything")
	}
}

func TestMemoryBridge_ConcurrentAccess(t *testing.T) {
	// Arrange
	b := NewMemoryBridge()
	ctx := context.Background()
	numGoroutines := 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Act
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			key := fmt.Sprintf("key-%d", id)
			_ = b.Set(ctx, key, "v")
			_, _, _ = b.Get(ctx, key)
			_ = b.Set(ctx, KeyCart, key)
		}(i)
	}

	wg.Wait()

	// Assert
	if got := b.Len(); got != numGoroutines+1 {
		t.Errorf("Len() = %d, want %d", got, numGoroutines+1)
	}
}

func TestMemoryBridge_ImplementsInterface(t *testing.T) {
	var _ Bridge = (*MemoryBridge)(nil)
	var _ Bridge = (*FileBridge)(nil)
	var _ Bridge = (*RedisBridge)(nil)
	var _ Bridge = (*SQLiteBridge)(nil)
}
