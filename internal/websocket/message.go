package websocket

import (
	"time"
)

// TypeConnection is sent once to each client right after it registers.
// Operation events carry the types declared in the operations package.
const TypeConnection = "connection"

// Message is the envelope for every frame sent to stream clients. Operation
// events fill the operation fields; the connection greeting uses Data.
type Message struct {
	Type        string      `json:"type"`
	OperationID string      `json:"operation_id,omitempty"`
	Step        string      `json:"step,omitempty"`
	Status      string      `json:"status,omitempty"`
	Progress    int         `json:"progress,omitempty"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	TraceID     string      `json:"trace_id,omitempty"`
}
