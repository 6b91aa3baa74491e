package simulation

import (
	"context"

	"lobby-crowd/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a scene step exceeds the tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	Agents         int     `json:"agents"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindScene},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
