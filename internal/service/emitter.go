package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// EventEmitter sends events to the frontend. The desktop App delegates to
// wailsRuntime.EventsEmit; the CLI and MCP server log them instead.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter records every emission for test assertions.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded emissions of one event, in order.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// LogEmitter writes events to the debug log, for hosts without a frontend.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	log.Debug().Str("event", event).Interface("data", data).Msg("event")
}
