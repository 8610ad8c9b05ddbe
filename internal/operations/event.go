package operations

import (
	"context"
	"log/slog"
	"time"
)

// Event types published on operation state changes. Stream consumers switch
// on these to route updates.
const (
	EventOperationStatus   = "operation:status"
	EventOperationProgress = "operation:progress"
	EventOperationComplete = "operation:complete"
	EventOperationError    = "operation:error"
)

// Event is a single operation state change. The manager publishes one for
// every step transition and progress update.
type Event struct {
	Type        string    `json:"type"`
	OperationID string    `json:"operation_id"`
	Step        string    `json:"step,omitempty"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// Publisher receives operation events. The server wires the websocket hub
// behind this interface; the CLI uses a LogPublisher.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// LogPublisher writes operation events to the structured log. It backs the
// CLI, where no websocket clients are listening.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs every event.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{
		logger: logger.With(slog.String("component", "operations.events")),
	}
}

// Publish logs the event. Errors log at error level, everything else at info.
func (p *LogPublisher) Publish(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if event.Type == EventOperationError {
		level = slog.LevelError
	}
	p.logger.LogAttrs(ctx, level, "operation event",
		slog.String("event_type", event.Type),
		slog.String("operation_id", event.OperationID),
		slog.String("step", event.Step),
		slog.String("status", event.Status),
		slog.Int("progress", event.Progress),
		slog.String("message", event.Message),
	)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event)

// Publish calls the wrapped function.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}
