package lifecycle

import (
	"context"

	"lobby-crowd/server/logging"
)

const (
	// EventSpawnDeferred is emitted each time a spawn request waits on the navmesh.
	EventSpawnDeferred logging.EventType = "lifecycle.spawn_deferred"
	// EventSpawnAbandoned is emitted when a spawn request exhausts its retry budget.
	EventSpawnAbandoned logging.EventType = "lifecycle.spawn_abandoned"
	// EventAgentSpawned is emitted for every agent the crowd creates.
	EventAgentSpawned logging.EventType = "lifecycle.agent_spawned"
	// EventAgentRemoved is emitted when an agent leaves the scene.
	EventAgentRemoved logging.EventType = "lifecycle.agent_removed"
)

// SpawnDeferredPayload captures the retry bookkeeping for a pending spawn.
type SpawnDeferredPayload struct {
	Attempt     int   `json:"attempt"`
	MaxAttempts int   `json:"maxAttempts"`
	RetryMillis int64 `json:"retryMillis"`
}

// SpawnAbandonedPayload captures why a pending spawn gave up.
type SpawnAbandonedPayload struct {
	Attempts  int    `json:"attempts"`
	Requested int    `json:"requested"`
	Reason    string `json:"reason"`
}

// AgentSpawnedPayload describes a freshly spawned agent.
type AgentSpawnedPayload struct {
	Position [3]float64 `json:"position"`
	Color    string     `json:"color"`
	RouteID  string     `json:"routeId,omitempty"`
	Sampled  bool       `json:"sampled"`
}

// AgentRemovedPayload captures the removal reason.
type AgentRemovedPayload struct {
	Reason string `json:"reason"`
}

func SpawnDeferred(ctx context.Context, pub logging.Publisher, tick uint64, payload SpawnDeferredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawnDeferred,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindCrowd},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func SpawnAbandoned(ctx context.Context, pub logging.Publisher, tick uint64, payload SpawnAbandonedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawnAbandoned,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindCrowd},
		Severity: logging.SeverityError,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func AgentSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentSpawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func AgentRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentRemovedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
