package telemetry

import (
	"context"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "focusblock-test", "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// The exporter connects lazily, so an unreachable endpoint is fine here.
	shutdown, err := Setup(context.Background(), "focusblock-test", "http://127.0.0.1:4318")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_ = shutdown(context.Background())
}
