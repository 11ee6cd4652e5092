package service

import (
	"context"
	"log/slog"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: run lifecycle notifications
// ─────────────────────────────────────────────────────────────

// EventEmitter receives run lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// SlogEmitter reports events through the default slog logger.
type SlogEmitter struct{}

func (SlogEmitter) Emit(ctx context.Context, event string, data any) {
	slog.InfoContext(ctx, "etl event", "event", event, "data", data)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}
