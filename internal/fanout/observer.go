package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies scheduler events for filtering and routing.
type EventType string

const (
	EventWorkerStart   EventType = "worker_start"
	EventWorkerDone    EventType = "worker_done"
	EventWorkerFailed  EventType = "worker_failed"
	EventStageComplete EventType = "stage_complete"
	EventStageTimeout  EventType = "stage_timeout"
)

// Event is a single observation from a stage run.
type Event struct {
	Type     EventType
	Stage    string
	Producer string
	Elapsed  time.Duration
	Error    error
	Metadata map[string]any
}

// Observer receives stage events. Worker events arrive from worker
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, obs := range m {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}

// LogObserver writes stage events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
		slog.String("stage", e.Stage),
	}
	if e.Producer != "" {
		attrs = append(attrs, slog.String("producer", e.Producer))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelDebug
	switch e.Type {
	case EventWorkerFailed, EventStageTimeout:
		level = slog.LevelWarn
	case EventStageComplete:
		level = slog.LevelInfo
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	logger.LogAttrs(context.Background(), level, "stage", attrs...)
}

// TraceCollector accumulates events in memory for post-run analysis.
// Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []Event
}

func (t *TraceCollector) OnEvent(e Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// EventsOfType returns only events matching the given type.
func (t *TraceCollector) EventsOfType(typ EventType) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func emit(obs Observer, e Event) {
	if obs != nil {
		obs.OnEvent(e)
	}
}
