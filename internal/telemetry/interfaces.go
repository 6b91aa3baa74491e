// Package telemetry is the narrow surface the navigation, crowd and transport
// packages report through: a printf logger for operator text and keyed
// counters that end up on /diagnostics.
package telemetry

import (
	"log"

	"lobby-crowd/server/logging"
)

// Logger prints operator-facing lines that are not simulation events.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc lets a plain function serve as a Logger. A nil func is silent.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// WrapLogger prints through logger; a nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	return LoggerFunc(logger.Printf)
}

// Metrics counts things like paths searched, spawns deferred and bytes sent.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics reports into the shared counter store served on /diagnostics.
// A nil store discards.
func WrapMetrics(store *logging.Metrics) Metrics {
	if store == nil {
		return NopMetrics()
	}
	return counterStore{store: store}
}

type counterStore struct {
	store *logging.Metrics
}

func (c counterStore) Add(key string, delta uint64)   { c.store.TelemetryAdd(key, delta) }
func (c counterStore) Store(key string, value uint64) { c.store.TelemetryStore(key, value) }

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// NopMetrics discards all counters.
func NopMetrics() Metrics {
	return nopMetrics{}
}
