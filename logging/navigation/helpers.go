package navigation

import (
	"context"

	"lobby-crowd/server/logging"
)

const (
	// EventMeshReady is emitted once when the navmesh zone becomes queryable.
	EventMeshReady logging.EventType = "navigation.mesh_ready"
	// EventDoubleInit is emitted when an already-ready navmesh is initialised again.
	EventDoubleInit logging.EventType = "navigation.double_init"
	// EventInitFailed is emitted when the source geometry cannot produce a zone.
	EventInitFailed logging.EventType = "navigation.init_failed"
	// EventPathNotFound is emitted when a backend cannot connect start to goal.
	EventPathNotFound logging.EventType = "navigation.path_not_found"
	// EventSampleFallback is emitted when random sampling exhausts its attempt budget.
	EventSampleFallback logging.EventType = "navigation.sample_fallback"
)

// MeshReadyPayload summarises the built zone.
type MeshReadyPayload struct {
	Zone   string `json:"zone"`
	Groups int    `json:"groups"`
	Nodes  int    `json:"nodes"`
	Source string `json:"source"`
}

// DoubleInitPayload names the zone that ignored a re-initialisation.
type DoubleInitPayload struct {
	Zone string `json:"zone"`
}

// InitFailedPayload carries the build failure reason.
type InitFailedPayload struct {
	Zone   string `json:"zone"`
	Reason string `json:"reason"`
}

// PathNotFoundPayload records the failed query.
type PathNotFoundPayload struct {
	Backend  string     `json:"backend"`
	Start    [3]float64 `json:"start"`
	Goal     [3]float64 `json:"goal"`
	Fallback bool       `json:"fallback"`
}

// SampleFallbackPayload records how many samples were rejected.
type SampleFallbackPayload struct {
	Attempts int `json:"attempts"`
}

func MeshReady(ctx context.Context, pub logging.Publisher, payload MeshReadyPayload) {
	publish(ctx, pub, EventMeshReady, logging.SeverityInfo, payload)
}

func DoubleInit(ctx context.Context, pub logging.Publisher, payload DoubleInitPayload) {
	publish(ctx, pub, EventDoubleInit, logging.SeverityWarn, payload)
}

func InitFailed(ctx context.Context, pub logging.Publisher, payload InitFailedPayload) {
	publish(ctx, pub, EventInitFailed, logging.SeverityWarn, payload)
}

func PathNotFound(ctx context.Context, pub logging.Publisher, payload PathNotFoundPayload) {
	publish(ctx, pub, EventPathNotFound, logging.SeverityDebug, payload)
}

func SampleFallback(ctx context.Context, pub logging.Publisher, payload SampleFallbackPayload) {
	publish(ctx, pub, EventSampleFallback, logging.SeverityWarn, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    logging.EntityRef{Kind: logging.EntityKindNavMesh},
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
	})
}
