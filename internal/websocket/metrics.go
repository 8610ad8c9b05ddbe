package websocket

import (
	"log/slog"
	"time"
)

// HubStats is a point-in-time snapshot of hub activity. The health endpoint
// embeds it in its response.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
	QueueDepth       int   `json:"queue_depth"`
}

// Stats returns current hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesDropped:  h.messagesDropped,
		QueueDepth:       len(h.broadcast),
	}
}

// reportStats logs hub counters every 30 seconds until the hub stops.
func (h *Hub) reportStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Info("hub stats",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent),
				slog.Int64("messages_dropped", stats.MessagesDropped),
				slog.Int("queue_depth", stats.QueueDepth))
		}
	}
}
