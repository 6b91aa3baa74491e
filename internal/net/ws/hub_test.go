package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/sim"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
)

type fakeLoop struct {
	mu       sync.Mutex
	capacity int
	commands []sim.Command
	snapshot sim.Snapshot
}

func (f *fakeLoop) Enqueue(cmd sim.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) >= f.capacity {
		return false
	}
	f.commands = append(f.commands, cmd)
	return true
}

func (f *fakeLoop) Snapshot() sim.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeLoop) queued() []sim.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sim.Command(nil), f.commands...)
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return decoded
}

func TestHandleSendsInitialState(t *testing.T) {
	loop := &fakeLoop{capacity: 4, snapshot: sim.Snapshot{
		Tick:     7,
		NavReady: true,
		Backend:  "navmesh",
		Agents:   []agent.View{{ID: "agent-0", State: "IDLE"}},
	}}
	conn := dialHub(t, NewHub(loop, HubConfig{}))

	state := readJSON(t, conn)
	if state["type"] != "state" || state["tick"] != float64(7) {
		t.Fatalf("unexpected initial state %v", state)
	}
	agents, ok := state["agents"].([]any)
	if !ok || len(agents) != 1 {
		t.Fatalf("expected one agent, got %v", state["agents"])
	}
}

func TestHandleEnqueuesCommandsWithAcks(t *testing.T) {
	loop := &fakeLoop{capacity: 1}
	conn := dialHub(t, NewHub(loop, HubConfig{}))
	readJSON(t, conn)

	conn.WriteJSON(map[string]any{"type": "threat", "x": 1, "y": 0, "z": 2, "seq": 1})
	ack := readJSON(t, conn)
	if ack["type"] != "commandAck" || ack["seq"] != float64(1) {
		t.Fatalf("expected ack for seq 1, got %v", ack)
	}

	conn.WriteJSON(map[string]any{"type": "clearThreat", "seq": 2})
	reject := readJSON(t, conn)
	if reject["type"] != "commandReject" || reject["reason"] != RejectQueueFull || reject["retry"] != true {
		t.Fatalf("expected queue_full reject, got %v", reject)
	}

	conn.WriteJSON(map[string]any{"type": "teleport", "seq": 3})
	invalid := readJSON(t, conn)
	if invalid["reason"] != RejectInvalid {
		t.Fatalf("expected invalid reject, got %v", invalid)
	}

	queued := loop.queued()
	if len(queued) != 1 || queued[0].Type != sim.CommandSetThreat || queued[0].Threat.Z != 2 {
		t.Fatalf("unexpected queued commands %+v", queued)
	}
	if !strings.HasPrefix(queued[0].Source, "observer-") {
		t.Fatalf("expected observer source, got %q", queued[0].Source)
	}
}

func TestHandleHeartbeat(t *testing.T) {
	conn := dialHub(t, NewHub(&fakeLoop{}, HubConfig{}))
	readJSON(t, conn)

	sentAt := time.Now().UnixMilli()
	conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": sentAt})
	reply := readJSON(t, conn)
	if reply["type"] != "heartbeat" || reply["clientTime"] != float64(sentAt) {
		t.Fatalf("unexpected heartbeat reply %v", reply)
	}
}

func TestObserveBroadcastsOnCadence(t *testing.T) {
	hub := NewHub(&fakeLoop{}, HubConfig{BroadcastEvery: 2})
	conn := dialHub(t, hub)
	readJSON(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Observe(sim.StepResult{Tick: 3, Snapshot: sim.Snapshot{Tick: 3}})
	hub.Observe(sim.StepResult{Tick: 4, Snapshot: sim.Snapshot{Tick: 4}})
	state := readJSON(t, conn)
	if state["tick"] != float64(4) {
		t.Fatalf("expected only tick 4 to be broadcast, got %v", state["tick"])
	}
}

func TestBroadcastDoesNotWaitForSlowObserver(t *testing.T) {
	metrics := &logging.Metrics{}
	hub := NewHub(&fakeLoop{}, HubConfig{Metrics: telemetry.WrapMetrics(metrics)})
	dialHub(t, hub) // never reads

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	agents := make([]agent.View, 5000)
	for i := range agents {
		agents[i] = agent.View{ID: fmt.Sprintf("agent-%d", i), State: "PATROL"}
	}
	start := time.Now()
	for tick := uint64(1); tick <= 64; tick++ {
		hub.Broadcast(sim.Snapshot{Tick: tick, Agents: agents})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected broadcasts to return promptly, took %s", elapsed)
	}
	if dropped := metrics.Snapshot()["ws_frames_dropped"]; dropped == 0 {
		t.Fatalf("expected frames to be dropped for the stalled observer")
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("expected the slow observer to stay connected, got %d subscribers", hub.Subscribers())
	}
}

func TestCommandForValidatesPayloads(t *testing.T) {
	cases := []struct {
		name string
		msg  clientMessage
		want sim.CommandType
		ok   bool
	}{
		{name: "route", msg: clientMessage{Type: "route", ID: "loop", Points: [][]float64{{0, 0, 0}}}, want: sim.CommandSetRoute, ok: true},
		{name: "route without id", msg: clientMessage{Type: "route"}},
		{name: "delete route", msg: clientMessage{Type: "deleteRoute", ID: "loop"}, want: sim.CommandDeleteRoute, ok: true},
		{name: "remove", msg: clientMessage{Type: "remove", AgentID: "agent-1"}, want: sim.CommandRemoveAgent, ok: true},
		{name: "remove without id", msg: clientMessage{Type: "remove"}},
		{name: "spawn", msg: clientMessage{Type: "spawn", Count: 2}, want: sim.CommandSpawn, ok: true},
		{name: "spawn zero", msg: clientMessage{Type: "spawn"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := commandFor(tc.msg)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && cmd.Type != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, cmd.Type)
			}
		})
	}
}
