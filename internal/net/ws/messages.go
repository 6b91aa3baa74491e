package ws

import (
	"lobby-crowd/server/internal/agent"
)

// ProtocolVersion is stamped on every server message.
const ProtocolVersion = 1

// Reject reasons sent back on commandReject.
const (
	RejectQueueFull = "queue_full"
	RejectInvalid   = "invalid"
)

type clientMessage struct {
	Ver        int         `json:"ver,omitempty"`
	Type       string      `json:"type"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Z          float64     `json:"z"`
	ID         string      `json:"id"`
	Points     [][]float64 `json:"points"`
	AgentID    string      `json:"agentId"`
	Reason     string      `json:"reason"`
	Count      int         `json:"count"`
	RouteID    string      `json:"routeId"`
	SentAt     int64       `json:"sentAt"`
	CommandSeq *uint64     `json:"seq,omitempty"`
}

type stateMessage struct {
	Ver          int          `json:"ver"`
	Type         string       `json:"type"`
	Tick         uint64       `json:"tick"`
	ServerTime   int64        `json:"serverTime"`
	NavReady     bool         `json:"navReady"`
	Backend      string       `json:"backend"`
	SpawnPending bool         `json:"spawnPending"`
	Threat       *[3]float64  `json:"threat,omitempty"`
	Agents       []agent.View `json:"agents"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}
