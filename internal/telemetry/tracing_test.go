package telemetry

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestInitTracing_Disabled(t *testing.T) {
	// Act
	shutdown, err := InitTracing(context.Background(), "", "test", zap.NewNop())

	// Assert
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInitTracing_Enabled(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	// The gRPC exporter connects lazily, so no collector is needed here.
	shutdown, err := InitTracing(ctx, "127.0.0.1:4317", "test", zap.NewNop())

	// Assert
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown is nil")
	}

	shutdownCtx, stop := context.WithCancel(context.Background())
	stop()
	_ = shutdown(shutdownCtx)
}
