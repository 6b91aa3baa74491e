package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"lobby-crowd/server/logging"
)

func TestJSONSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)

	if err := sink.Write(logging.Event{Type: "agents.state_changed", Tick: 3, Actor: logging.AgentRef("agent-1")}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("failed to decode line: %v", err)
	}
	if decoded["type"] != "agents.state_changed" {
		t.Fatalf("expected type agents.state_changed, got %v", decoded["type"])
	}
}

func TestJSONSinkWritesLevelAndBuffersUntilClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)
	sink.Write(logging.Event{Type: "navigation.path_not_found", Severity: logging.SeverityWarn, Category: "navigation"})
	if buf.Len() != 0 {
		t.Fatalf("expected the line to stay buffered, got %q", buf.String())
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode line: %v", err)
	}
	if decoded["level"] != "warn" || decoded["category"] != "navigation" {
		t.Fatalf("expected warn navigation line, got %v", decoded)
	}
}

func TestConsoleSinkFormatsActorAndPayload(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	sink.Write(logging.Event{
		Type:     "lifecycle.agent_spawned",
		Tick:     12,
		Actor:    logging.AgentRef("agent-0"),
		Targets:  []logging.EntityRef{{Kind: logging.EntityKindNavMesh, ID: "level1"}},
		Severity: logging.SeverityInfo,
		Payload:  map[string]int{"x": 1},
	})
	out := buf.String()
	for _, want := range []string{"INFO ", "lifecycle.agent_spawned t=12", "agent:agent-0", "-> navmesh:level1", `{"x":1}`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no colour codes without UseColor")
	}
}

func TestConsoleSinkColorsSeverity(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{UseColor: true})
	sink.Write(logging.Event{Type: "navigation.double_init", Severity: logging.SeverityWarn})
	if !strings.Contains(buf.String(), "\x1b[33mWARN ") {
		t.Fatalf("expected yellow warn label in %q", buf.String())
	}
}
