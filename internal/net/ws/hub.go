package ws

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lobby-crowd/server/internal/sim"
	"lobby-crowd/server/internal/telemetry"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many state frames may wait for a slow observer before
	// new frames are dropped for it.
	sendBuffer = 4
)

// Loop is the slice of the simulation loop the hub talks to.
type Loop interface {
	Enqueue(cmd sim.Command) bool
	Snapshot() sim.Snapshot
}

type HubConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	// BroadcastEvery sends one state message every N ticks.
	BroadcastEvery uint64
}

// subscriber is one observer. Broadcast frames go through send and are
// written by the subscriber's own goroutine so the loop never waits on a
// socket; direct replies from the read loop share the write lock.
type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// offer queues a state frame without blocking. It reports false when the
// observer is behind or gone.
func (s *subscriber) offer(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Hub streams snapshots to observers and turns their messages into
// simulation commands.
type Hub struct {
	loop     Loop
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	every    uint64
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string]*subscriber
	nextID      atomic.Uint64
}

func NewHub(loop Loop, cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	if cfg.BroadcastEvery == 0 {
		cfg.BroadcastEvery = 1
	}
	return &Hub{
		loop:    loop,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		every:   cfg.BroadcastEvery,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribers reports the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) subscribe(conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		id:   fmt.Sprintf("observer-%d", h.nextID.Add(1)),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	h.metrics.Store("ws_subscribers", uint64(count))
	go h.writePump(sub)
	return sub
}

// writePump drains sub's queued state frames until it disconnects.
func (h *Hub) writePump(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.send:
			if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Printf("[ws] failed to send update to %s: %v", sub.id, err)
				h.Disconnect(sub.id)
				return
			}
			h.metrics.Add("ws_bytes_sent", uint64(len(data)))
		}
	}
}

// Disconnect drops an observer and closes its connection.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.close()
	h.metrics.Store("ws_subscribers", uint64(count))
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Disconnect(id)
	}
}

// Observe is the loop's AfterStep hook.
func (h *Hub) Observe(result sim.StepResult) {
	if result.Tick%h.every != 0 {
		return
	}
	h.Broadcast(result.Snapshot)
}

// MarshalState encodes a snapshot as a state message.
func MarshalState(snapshot sim.Snapshot) ([]byte, error) {
	msg := stateMessage{
		Ver:          ProtocolVersion,
		Type:         "state",
		Tick:         snapshot.Tick,
		ServerTime:   time.Now().UnixMilli(),
		NavReady:     snapshot.NavReady,
		Backend:      snapshot.Backend,
		SpawnPending: snapshot.SpawnPending,
		Threat:       snapshot.Threat,
		Agents:       snapshot.Agents,
	}
	return json.Marshal(msg)
}

// Broadcast queues snapshot for every observer and returns without waiting on
// the network. An observer whose queue is full misses this frame.
func (h *Hub) Broadcast(snapshot sim.Snapshot) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	data, err := MarshalState(snapshot)
	if err != nil {
		h.logger.Printf("[ws] failed to marshal state: %v", err)
		return
	}
	for _, sub := range subs {
		if !sub.offer(data) {
			h.metrics.Add("ws_frames_dropped", 1)
		}
	}
	h.metrics.Add("ws_broadcasts", 1)
}
