package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"lobby-crowd/server/internal/sim"
)

// Handle upgrades an observer connection, sends the current state and then
// reads commands until the connection drops.
func (h *Hub) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed: %v", err)
		return
	}
	sub := h.subscribe(conn)
	defer h.Disconnect(sub.id)

	data, err := MarshalState(h.loop.Snapshot())
	if err != nil {
		h.logger.Printf("[ws] failed to marshal initial state for %s: %v", sub.id, err)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("[ws] discarding malformed message from %s: %v", sub.id, err)
			continue
		}

		var reply any
		if msg.Type == "heartbeat" {
			now := time.Now()
			rtt := int64(0)
			if msg.SentAt > 0 {
				rtt = now.UnixMilli() - msg.SentAt
			}
			reply = heartbeatMessage{
				Ver:        ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt,
			}
		} else {
			reply = h.dispatch(sub.id, msg)
		}
		if reply == nil {
			continue
		}

		data, err := json.Marshal(reply)
		if err != nil {
			h.logger.Printf("[ws] failed to marshal response for %s: %v", sub.id, err)
			continue
		}
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// dispatch converts msg to a command and enqueues it. The reply is nil when
// the client sent no sequence number.
func (h *Hub) dispatch(source string, msg clientMessage) any {
	seq := uint64(0)
	if msg.CommandSeq != nil {
		seq = *msg.CommandSeq
	}
	reject := func(reason string, retry bool) any {
		if seq == 0 {
			return nil
		}
		return commandRejectMessage{Ver: ProtocolVersion, Type: "commandReject", Seq: seq, Reason: reason, Retry: retry}
	}

	cmd, ok := commandFor(msg)
	if !ok {
		h.logger.Printf("[ws] unknown message type %q from %s", msg.Type, source)
		return reject(RejectInvalid, false)
	}
	cmd.Source = source
	if !h.loop.Enqueue(cmd) {
		h.metrics.Add("ws_commands_rejected", 1)
		return reject(RejectQueueFull, true)
	}
	h.metrics.Add("ws_commands_accepted", 1)
	if seq == 0 {
		return nil
	}
	return commandAckMessage{Ver: ProtocolVersion, Type: "commandAck", Seq: seq}
}

func commandFor(msg clientMessage) (sim.Command, bool) {
	switch msg.Type {
	case "threat":
		return sim.Command{Type: sim.CommandSetThreat, Threat: &sim.ThreatCommand{X: msg.X, Y: msg.Y, Z: msg.Z}}, true
	case "clearThreat":
		return sim.Command{Type: sim.CommandClearThreat}, true
	case "route":
		if msg.ID == "" {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandSetRoute, Route: &sim.RouteCommand{ID: msg.ID, Points: msg.Points}}, true
	case "deleteRoute":
		if msg.ID == "" {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandDeleteRoute, Route: &sim.RouteCommand{ID: msg.ID}}, true
	case "remove":
		if msg.AgentID == "" {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandRemoveAgent, Remove: &sim.RemoveCommand{AgentID: msg.AgentID, Reason: msg.Reason}}, true
	case "spawn":
		if msg.Count <= 0 {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandSpawn, Spawn: &sim.SpawnCommand{Count: msg.Count, RouteID: msg.RouteID}}, true
	default:
		return sim.Command{}, false
	}
}
