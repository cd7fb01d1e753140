package engine

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event represents an engine lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the engine. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// ZerologPublisher forwards engine events to a structured logger.
type ZerologPublisher struct {
	Log zerolog.Logger
}

func (p ZerologPublisher) Publish(ev Event) {
	z := p.Log.Info().Str("event", ev.Name)
	if ev.ModelID != "" {
		z = z.Str("model", ev.ModelID)
	}
	for k, v := range ev.Fields {
		z = z.Interface(k, v)
	}
	z.Msg("engine event")
}

// MemoryPublisher records events in order; test helper.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Names returns the event names in publication order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Name
	}
	return out
}
