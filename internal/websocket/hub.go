package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// Options control connection timing and buffer sizes. The server populates
// them from config; zero fields fall back to defaults.
type Options struct {
	// WriteWait is the deadline for writing a single frame to the peer.
	WriteWait time.Duration

	// PongWait is how long a connection may go silent before the read
	// deadline expires. Pongs extend it.
	PongWait time.Duration

	// PingPeriod is the interval between server pings. Must be shorter
	// than PongWait or the peer times out between pings.
	PingPeriod time.Duration

	// MaxMessageSize caps frames read from clients. The stream is one way,
	// clients only send heartbeats.
	MaxMessageSize int64

	// SendBuffer is the per-client outbound queue. Clients that fall this
	// far behind are disconnected.
	SendBuffer int
}

// DefaultOptions returns the timings used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512,
		SendBuffer:     256,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	return o
}

// Hub maintains the set of active clients and fans operation events out to
// them. One Hub serves the whole process.
type Hub struct {
	clients map[*Client]bool

	// Outbound frames queued for fan-out
	broadcast chan []byte

	// Register requests from new connections
	register chan *Client

	// Unregister requests from closing connections
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger
	opts   Options

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	quit    chan struct{}
	running bool
}

// NewHub creates a hub with default options.
func NewHub(logger *slog.Logger) *Hub {
	return NewHubWithOptions(logger, DefaultOptions())
}

// NewHubWithOptions creates a hub with explicit connection options.
func NewHubWithOptions(logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))
	opts = opts.withDefaults()

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, opts.SendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		opts:       opts,
		quit:       make(chan struct{}),
	}
}

// Start launches the hub loop and the periodic stats reporter. Calling it
// twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportStats()
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastMessage fans the message out to every connected client. When the
// hub queue is full the message is dropped rather than blocking the caller;
// operations must not stall on slow consumers.
func (h *Hub) BroadcastMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast message",
			slog.String("error", err.Error()),
			slog.String("type", msg.Type))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.Warn("broadcast queue full, dropping message",
			slog.String("type", msg.Type),
			slog.String("operation_id", msg.OperationID))
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.sendGreeting(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				ctx := context.Background()
				if client.traceID != "" {
					ctx = infrastructure.WithTraceID(ctx, client.traceID)
				}
				h.logger.InfoContext(ctx, "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// sendGreeting delivers the connection acknowledgement to a newly
// registered client.
func (h *Hub) sendGreeting(ctx context.Context, client *Client) {
	greeting := Message{
		Type:      TypeConnection,
		Status:    "connected",
		Message:   "Connected to the burial analysis event stream",
		Data:      map[string]string{"client_id": client.id},
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
	}

	data, err := json.Marshal(greeting)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal greeting", slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "greeting dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

// fanOut delivers one frame to every client. Clients whose send buffer is
// full are disconnected; a reader that slow will never catch up.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	dropped := 0
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			dropped++
			h.mu.Lock()
			close(client.send)
			delete(h.clients, client)
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}
			h.logger.WarnContext(ctx, "client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(sent)
	h.messagesDropped += int64(dropped)
	h.mu.Unlock()

	h.logger.Debug("broadcast delivered",
		slog.Int("clients", len(clients)),
		slog.Int("sent", sent),
		slog.Int("dropped", dropped),
		slog.Int("message_size", len(message)))
}
