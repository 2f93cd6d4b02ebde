package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "neuromap", "test", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fields := otel.GetTextMapPropagator().Fields(); len(fields) == 0 {
		t.Fatal("propagator not set")
	}
}

func TestInitWithEndpoint(t *testing.T) {
	// grpc.NewClient не подключается сразу, поэтому коллектор не нужен.
	ctx := context.Background()
	shutdown, err := Init(ctx, "neuromap", "test", "127.0.0.1:4317")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	_ = shutdown(ctx)
}
