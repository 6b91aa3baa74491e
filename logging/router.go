package logging

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to sink workers without ever blocking the caller. The
// simulation publishes from inside the tick, so a saturated queue drops.
type Router struct {
	cfg      Config
	queue    chan Event
	workers  []*sinkWorker
	clock    Clock
	fallback *log.Logger
	fields   map[string]any
	stop     chan struct{}
	done     sync.WaitGroup
	closed   atomic.Bool

	forwarded   atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

// SinkStats counts what one sink worker did with its share of the stream.
type SinkStats struct {
	Written  uint64 `json:"written"`
	Dropped  uint64 `json:"dropped"`
	Failures uint64 `json:"failures"`
}

type RouterStats struct {
	EventsTotal  uint64               `json:"eventsTotal"`
	DroppedTotal uint64               `json:"droppedTotal"`
	Sinks        map[string]SinkStats `json:"sinks,omitempty"`
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 512
	}
	if cfg.DropWarnInterval <= 0 {
		cfg.DropWarnInterval = 5 * time.Second
	}
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, cfg.BufferSize),
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		fields:   cfg.CloneFields(),
		stop:     make(chan struct{}),
	}

	backlog := min(max(cfg.BufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, backlog),
			fallback: r.fallback,
		})
	}

	for _, worker := range r.workers {
		r.done.Add(1)
		go func(w *sinkWorker) {
			defer r.done.Done()
			w.run()
		}(worker)
	}
	r.done.Add(1)
	go r.dispatch()
	return r, nil
}

// dispatch moves events from the shared queue to every sink. On stop it
// forwards whatever is still queued and closes the sink backlogs.
func (r *Router) dispatch() {
	defer r.done.Done()
	defer func() {
		for _, worker := range r.workers {
			close(worker.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) accepts(event Event) bool {
	floor := r.cfg.MinimumSeverity
	if override, ok := r.cfg.CategorySeverity[event.Category]; ok {
		floor = override
	}
	return event.Severity >= floor
}

func (r *Router) forward(event Event) {
	if !r.accepts(event) {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.forwarded.Add(1)
	for _, worker := range r.workers {
		worker.enqueue(event)
	}
}

// Publish queues event for the sinks. Untyped events and events published
// after Close are ignored.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

// warnDrop reports a dropped event at most once per DropWarnInterval.
func (r *Router) warnDrop(event Event) {
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now < next {
		return
	}
	if r.nextDropLog.CompareAndSwap(next, now+r.cfg.DropWarnInterval.Nanoseconds()) {
		r.fallback.Printf("queue full, dropping event type=%s tick=%d (dropped=%d)", event.Type, event.Tick, r.dropped.Load())
	}
}

// Close stops accepting events, drains the queue into the sinks and closes them.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	finished := make(chan struct{})
	go func() {
		r.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.forwarded.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	if len(r.workers) > 0 {
		stats.Sinks = make(map[string]SinkStats, len(r.workers))
		for _, worker := range r.workers {
			stats.Sinks[worker.name] = worker.stats()
		}
	}
	return stats
}

// SinkNames lists the configured sinks in name order.
func (r *Router) SinkNames() []string {
	names := make([]string, 0, len(r.workers))
	for _, worker := range r.workers {
		names = append(names, worker.name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Sink(name string) Sink {
	for _, worker := range r.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

// sinkWorker owns one sink. A failing sink backs off exponentially, up to
// 32s, before the next write.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	written  atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Uint64
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		if w.dropped.Add(1) == 1 {
			w.fallback.Printf("sink %s backlog full, dropping events", w.name)
		}
	}
}

func (w *sinkWorker) run() {
	streak := 0
	for event := range w.events {
		if err := w.sink.Write(event); err != nil {
			streak++
			w.failures.Add(1)
			delay := time.Duration(1<<min(streak, 5)) * time.Second
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			time.Sleep(delay)
			continue
		}
		streak = 0
		w.written.Add(1)
	}
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Failures: w.failures.Load(),
	}
}
