package sim

import "time"

// CommandType enumerates the scene commands accepted from the network.
type CommandType string

const (
	CommandSetThreat   CommandType = "SetThreat"
	CommandClearThreat CommandType = "ClearThreat"
	CommandSetRoute    CommandType = "SetRoute"
	CommandDeleteRoute CommandType = "DeleteRoute"
	CommandRemoveAgent CommandType = "RemoveAgent"
	CommandSpawn       CommandType = "Spawn"
)

// ThreatCommand moves the tracked threat.
type ThreatCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RouteCommand replaces or deletes a patrol route.
type RouteCommand struct {
	ID     string      `json:"id"`
	Points [][]float64 `json:"points,omitempty"`
}

// RemoveCommand takes an agent out of the scene.
type RemoveCommand struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason,omitempty"`
}

// SpawnCommand asks for a crowd of Count agents; live agents count toward it.
type SpawnCommand struct {
	Count   int    `json:"count"`
	RouteID string `json:"routeId,omitempty"`
}

// Command is an intent applied at the start of the next tick.
type Command struct {
	Type     CommandType    `json:"type"`
	Source   string         `json:"source,omitempty"`
	IssuedAt time.Time      `json:"issuedAt"`
	Threat   *ThreatCommand `json:"threat,omitempty"`
	Route    *RouteCommand  `json:"route,omitempty"`
	Remove   *RemoveCommand `json:"remove,omitempty"`
	Spawn    *SpawnCommand  `json:"spawn,omitempty"`
}
