package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/relayer/internal/control"
)

func TestGracefulShutdown(t *testing.T) {
	source := newStubNode(t, "0x1", "0x96")
	dest := newStubNode(t, "0x89", "0x10")

	checkpointPath := filepath.Join(t.TempDir(), "state.json")
	cfg := relayConfig(t, source, dest, checkpointPath)

	app, err := control.NewRelayer(cfg)
	if err != nil {
		t.Fatalf("Failed to create relayer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	startError := make(chan error, 1)
	go func() {
		startError <- app.Start(ctx)
	}()

	// Let a few cycles run
	time.Sleep(200 * time.Millisecond)

	cancel()

	select {
	case err := <-startError:
		if err != nil && err != context.Canceled {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("Start did not return within 10s of cancellation")
	}
}
