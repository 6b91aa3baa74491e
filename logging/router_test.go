package logging_test

import (
	"context"
	"testing"
	"time"

	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/sinks"
)

func TestRouterFiltersBySeverityAndAppliesFields(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	cfg.Fields = map[string]any{"scene": "lobby"}

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	router, err := logging.NewRouter(logging.ClockFunc(func() time.Time { return fixed }), cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "debug.only", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "navigation.double_init", Severity: logging.SeverityWarn})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != "navigation.double_init" {
		t.Fatalf("expected warn event to pass, got %s", events[0].Type)
	}
	if events[0].Extra["scene"] != "lobby" {
		t.Fatalf("expected static field to be applied, got %v", events[0].Extra)
	}
	if !events[0].Time.Equal(fixed) {
		t.Fatalf("expected clock time %v, got %v", fixed, events[0].Time)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", stats.EventsTotal)
	}
}

func TestRouterIgnoresUntypedAndClosed(t *testing.T) {
	memory := sinks.NewMemorySink()
	router, _ := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.Event{})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})

	if got := len(memory.Events()); got != 0 {
		t.Fatalf("expected no events, got %d", got)
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected Sink lookup to return the memory sink")
	}
}

func TestRouterCategoryOverrideAndSinkStats(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	cfg.CategorySeverity = map[string]logging.Severity{logging.CategoryNavigation: logging.SeverityDebug}
	router, _ := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.Event{Type: "navigation.path_not_found", Severity: logging.SeverityDebug, Category: logging.CategoryNavigation})
	router.Publish(context.Background(), logging.Event{Type: "lifecycle.spawn_deferred", Severity: logging.SeverityDebug, Category: logging.CategoryLifecycle})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "navigation.path_not_found" {
		t.Fatalf("expected only the navigation debug event, got %+v", events)
	}
	stats := router.Stats()
	if stats.Sinks["memory"].Written != 1 {
		t.Fatalf("expected 1 write on the memory sink, got %+v", stats.Sinks)
	}
	if names := router.SinkNames(); len(names) != 1 || names[0] != "memory" {
		t.Fatalf("unexpected sink names %v", names)
	}
}

func TestMetricsAddAndStore(t *testing.T) {
	var metrics logging.Metrics
	metrics.TelemetryAdd("paths", 2)
	metrics.TelemetryStore("paths", 5)
	metrics.TelemetryAdd("paths", 3)
	if got := metrics.Snapshot()["paths"]; got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}
