package telemetry

import (
	"bytes"
	"log"
	"testing"

	"lobby-crowd/server/logging"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WrapLogger(log.New(&buf, "", 0))
		logger.Printf("crowd spawned %d agents", 8)
		if got := buf.String(); got != "crowd spawned 8 agents\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	metrics := logging.Metrics{}
	adapter := WrapMetrics(&metrics)

	adapter.Add("grid_paths", 2)
	adapter.Store("grid_paths", 5)
	adapter.Add("grid_paths", 3)

	if got := metrics.Snapshot()["grid_paths"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
	NopMetrics().Add("ignored", 1)
}
