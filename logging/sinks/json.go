package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"lobby-crowd/server/logging"
)

// jsonLine is one record of the JSON lines stream. Severity is written both as
// its number and its level name so log shippers can filter on either.
type jsonLine struct {
	Type     logging.EventType   `json:"type"`
	Tick     uint64              `json:"tick"`
	Time     string              `json:"time"`
	Level    string              `json:"level"`
	Severity logging.Severity    `json:"severity"`
	Category string              `json:"category,omitempty"`
	Actor    logging.EntityRef   `json:"actor"`
	Targets  []logging.EntityRef `json:"targets,omitempty"`
	Payload  any                 `json:"payload,omitempty"`
	Extra    map[string]any      `json:"extra,omitempty"`
}

// JSON appends navigation, crowd and loop events to a JSON lines file. With a
// flush interval the buffer is flushed on a ticker, otherwise after every line.
type JSON struct {
	mu      sync.Mutex
	out     *bufio.Writer
	enc     *json.Encoder
	eager   bool
	stopped chan struct{}
	once    sync.Once
}

func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	out := bufio.NewWriter(w)
	sink := &JSON{
		out:     out,
		enc:     json.NewEncoder(out),
		eager:   flushInterval <= 0,
		stopped: make(chan struct{}),
	}
	if !sink.eager {
		go sink.flushEvery(flushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	line := jsonLine{
		Type:     event.Type,
		Tick:     event.Tick,
		Time:     event.Time.UTC().Format(time.RFC3339Nano),
		Level:    event.Severity.String(),
		Severity: event.Severity,
		Category: event.Category,
		Actor:    event.Actor,
		Targets:  event.Targets,
		Payload:  event.Payload,
		Extra:    event.Extra,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(line); err != nil {
		return err
	}
	if s.eager {
		return s.out.Flush()
	}
	return nil
}

// Close stops the ticker and writes out whatever is buffered.
func (s *JSON) Close(context.Context) error {
	s.once.Do(func() { close(s.stopped) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Flush()
}

func (s *JSON) flushEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.out.Flush()
			s.mu.Unlock()
		}
	}
}
