package net

import (
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/net/ws"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/internal/sim"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
)

type HTTPHandlerConfig struct {
	Logger   telemetry.Logger
	TickRate int
	// Stats and Metrics feed /diagnostics when set.
	Stats   func() logging.RouterStats
	Metrics *logging.Metrics
}

type pathResponse struct {
	Backend   string       `json:"backend"`
	Ready     bool         `json:"ready"`
	Found     bool         `json:"found"`
	Fallback  bool         `json:"fallback,omitempty"`
	Waypoints [][3]float64 `json:"waypoints"`
}

type routeRequest struct {
	ID     string      `json:"id"`
	Points [][]float64 `json:"points"`
}

func NewHTTPHandler(loop *sim.Loop, hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snapshot := loop.Snapshot()
		payload := struct {
			Status       string            `json:"status"`
			ServerTime   int64             `json:"serverTime"`
			Tick         uint64            `json:"tick"`
			TickRate     int               `json:"tickRate"`
			NavReady     bool              `json:"navReady"`
			Backend      string            `json:"backend"`
			Agents       int               `json:"agents"`
			SpawnPending bool              `json:"spawnPending"`
			Observers    int               `json:"observers"`
			Logging      any               `json:"logging,omitempty"`
			Telemetry    map[string]uint64 `json:"telemetry,omitempty"`
		}{
			Status:       "ok",
			ServerTime:   time.Now().UnixMilli(),
			Tick:         snapshot.Tick,
			TickRate:     cfg.TickRate,
			NavReady:     snapshot.NavReady,
			Backend:      snapshot.Backend,
			Agents:       len(snapshot.Agents),
			SpawnPending: snapshot.SpawnPending,
		}
		if hub != nil {
			payload.Observers = hub.Subscribers()
		}
		if cfg.Stats != nil {
			payload.Logging = cfg.Stats()
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.Snapshot()
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, loop.Snapshot())
	})

	mux.HandleFunc("/routes", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			writeJSON(w, loop.Scene().Routes().Snapshot())
		case nethttp.MethodPost:
			var req routeRequest
			if r.Body == nil {
				httpError(w, "missing payload", nethttp.StatusBadRequest)
				return
			}
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			if req.ID == "" {
				httpError(w, routes.ErrEmptyID.Error(), nethttp.StatusBadRequest)
				return
			}
			cmd := sim.Command{Type: sim.CommandSetRoute, Source: "http", Route: &sim.RouteCommand{ID: req.ID, Points: req.Points}}
			if len(req.Points) == 0 {
				cmd.Type = sim.CommandDeleteRoute
			}
			if !loop.Enqueue(cmd) {
				httpError(w, "command queue full", nethttp.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(nethttp.StatusAccepted)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/path", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		query := r.URL.Query()
		kind := pathfinding.KindNone
		if raw := query.Get("backend"); raw != "" {
			parsed, err := pathfinding.ParseKind(raw)
			if err != nil {
				httpError(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			kind = parsed
		}
		from, err := ParseVec3(query.Get("from"))
		if err != nil {
			httpError(w, "invalid from: "+err.Error(), nethttp.StatusBadRequest)
			return
		}
		to, err := ParseVec3(query.Get("to"))
		if err != nil {
			httpError(w, "invalid to: "+err.Error(), nethttp.StatusBadRequest)
			return
		}

		backend := loop.Scene().Pathfinder(kind)
		path, found := backend.FindPath(from, to)
		response := pathResponse{
			Backend:   backend.Kind().String(),
			Ready:     backend.IsReady(),
			Found:     found,
			Fallback:  path.Fallback,
			Waypoints: make([][3]float64, 0, len(path.Waypoints)),
		}
		for _, p := range path.Waypoints {
			response.Waypoints = append(response.Waypoints, [3]float64(p))
		}
		writeJSON(w, response)
	})

	if hub != nil {
		mux.HandleFunc("/ws", hub.Handle)
	}

	logger.Printf("[http] routes ready: /health /diagnostics /state /routes /path /ws")
	return mux
}

// ParseVec3 reads "x,y,z". Two components are read as x,z on the floor.
func ParseVec3(raw string) (geom.Vec3, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("expected x,y,z, got %q", raw)
	}
	values := make([]float64, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Vec3{}, err
		}
		values[i] = value
	}
	if len(values) == 2 {
		return geom.Vec3{values[0], 0, values[1]}, nil
	}
	return geom.Vec3{values[0], values[1], values[2]}, nil
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
