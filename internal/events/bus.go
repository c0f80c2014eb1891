package events

import (
	"log/slog"
	"sync"
)

// Event types carried over the bus and the WebSocket stream.
const (
	EventCommandResult = "command_result"
	EventMacroStarted  = "macro_started"
	EventMacroStep     = "macro_step"
	EventMacroFinished = "macro_finished"
	EventSpeakerState  = "speaker_state"
	EventProxyState    = "proxy_state"
)

// Event is a typed notification with an arbitrary JSON-friendly payload.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Handler is a callback for events.
type Handler func(Event)

// subscription binds a handler to an event type. An empty eventType
// matches every event.
type subscription struct {
	id        uint64
	eventType string
	fn        Handler
}

// Bus is an in-process pub/sub fan-out. Handlers run synchronously on
// the emitting goroutine, so they must not block; slow consumers (the
// WebSocket hub, the MQTT bridge) buffer internally instead.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// On registers a handler for one event type and returns its
// unsubscribe function.
func (b *Bus) On(eventType string, handler Handler) func() {
	return b.subscribe(eventType, handler)
}

// OnAll registers a handler for every event and returns its
// unsubscribe function.
func (b *Bus) OnAll(handler Handler) func() {
	return b.subscribe("", handler)
}

func (b *Bus) subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, eventType: eventType, fn: handler})
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to matching handlers in subscription order.
// A panicking handler is recovered so the rest still run.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.eventType == "" || sub.eventType == event.Type {
			matched = append(matched, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range matched {
		b.call(event, fn)
	}
}

func (b *Bus) call(event Event, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	fn(event)
}
