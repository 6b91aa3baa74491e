package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"lobby-crowd/server/logging"
)

const ansiReset = "\x1b[0m"

var severityColors = map[logging.Severity]string{
	logging.SeverityDebug: "\x1b[90m",
	logging.SeverityInfo:  "\x1b[36m",
	logging.SeverityWarn:  "\x1b[33m",
	logging.SeverityError: "\x1b[31m",
}

// ConsoleSink prints one line per event:
//
//	15:04:05.000 WARN  navigation.double_init t=42 navmesh:level1 {"zone":"level1"}
type ConsoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{w: w, color: cfg.UseColor}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	var b strings.Builder
	b.WriteString(event.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	level := fmt.Sprintf("%-5s", strings.ToUpper(event.Severity.String()))
	if s.color {
		level = severityColors[event.Severity] + level + ansiReset
	}
	b.WriteString(level)
	fmt.Fprintf(&b, " %s t=%d", event.Type, event.Tick)
	if actor := entityLabel(event.Actor); actor != "" {
		b.WriteByte(' ')
		b.WriteString(actor)
	}
	if len(event.Targets) > 0 {
		labels := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			labels = append(labels, entityLabel(target))
		}
		fmt.Fprintf(&b, " -> %s", strings.Join(labels, ","))
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			b.WriteByte(' ')
			b.Write(data)
		} else {
			fmt.Fprintf(&b, " %+v", event.Payload)
		}
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func entityLabel(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}
