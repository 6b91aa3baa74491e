package agents

import (
	"context"

	"lobby-crowd/server/logging"
)

const (
	// EventStateChanged is emitted on every FSM transition.
	EventStateChanged logging.EventType = "agents.state_changed"
	// EventBark is emitted when an agent greets the tracked target.
	EventBark logging.EventType = "agents.bark"
	// EventUnknownState is emitted when a transition names an unregistered state.
	EventUnknownState logging.EventType = "agents.unknown_state"
)

// StateChangedPayload records the transition and its cause.
type StateChangedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// UnknownStatePayload names the rejected state.
type UnknownStatePayload struct {
	State string `json:"state"`
}

// BarkPayload carries the spoken line.
type BarkPayload struct {
	Text string `json:"text"`
}

func StateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StateChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryAgents,
		Payload:  payload,
	})
}

func Bark(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BarkPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBark,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAgents,
		Payload:  payload,
	})
}

func UnknownState(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload UnknownStatePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnknownState,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAgents,
		Payload:  payload,
	})
}
