package websocket

import (
	"context"

	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/operations"
)

// OperationPublisher forwards pipeline events from the operations manager to
// every connected stream client. It implements operations.Publisher.
type OperationPublisher struct {
	hub *Hub
}

// NewOperationPublisher creates a publisher backed by the hub.
func NewOperationPublisher(hub *Hub) *OperationPublisher {
	return &OperationPublisher{hub: hub}
}

// Publish translates the event into the wire envelope. The trace ID rides
// along so browser consoles can be matched against server logs.
func (p *OperationPublisher) Publish(ctx context.Context, event operations.Event) {
	p.hub.BroadcastMessage(Message{
		Type:        event.Type,
		OperationID: event.OperationID,
		Step:        event.Step,
		Status:      event.Status,
		Progress:    event.Progress,
		Message:     event.Message,
		Timestamp:   event.Time,
		TraceID:     infrastructure.GetTraceID(ctx),
	})
}
