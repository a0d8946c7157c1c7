package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synapsestack/csaw-engine/internal/models"
)

const (
	defaultWriteWait    = 5 * time.Second
	defaultPingInterval = 45 * time.Second
	sendBufferSize      = 16
)

// Settings tune the delivery heartbeat. Zero values fall back to defaults.
type Settings struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
}

// Event is one websocket payload pushed to subscribed clients.
type Event struct {
	Kind      string               `json:"kind"`
	ProjectID string               `json:"projectId"`
	Alert     *models.Alert        `json:"alert,omitempty"`
	Summary   *models.SmartSummary `json:"summary,omitempty"`
	SentAt    time.Time            `json:"sentAt"`
}

// Registry fans out accepted smart pings to live websocket subscribers.
// Slow clients are disconnected rather than allowed to stall delivery.
type Registry struct {
	logger    *slog.Logger
	heartbeat time.Duration
	writeWait time.Duration
	pongWait  time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn      *websocket.Conn
	projectID string
	send      chan []byte
}

// NewRegistry constructs an empty delivery registry.
func NewRegistry(logger *slog.Logger, settings Settings) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := settings.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultPingInterval
	}
	writeWait := settings.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &Registry{
		logger:    logger,
		heartbeat: heartbeat,
		writeWait: writeWait,
		// The peer gets a full heartbeat plus slack to answer before the
		// read side gives up on it.
		pongWait:  heartbeat + 15*time.Second,
		clients:  make(map[*client]struct{}),
	}
}

// Attach adopts an upgraded websocket connection subscribed to one project.
// An empty projectID subscribes to all projects. Attach returns immediately;
// pumps run on their own goroutines until the peer disconnects.
func (r *Registry) Attach(conn *websocket.Conn, projectID string) {
	c := &client{
		conn:      conn,
		projectID: projectID,
		send:      make(chan []byte, sendBufferSize),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return
	}
	r.clients[c] = struct{}{}
	r.mu.Unlock()

	go r.writePump(c)
	go r.readPump(c)
}

// PublishAlert pushes one accepted alert to matching subscribers.
func (r *Registry) PublishAlert(projectID string, alert models.Alert) {
	r.publish(Event{
		Kind:      "alert",
		ProjectID: projectID,
		Alert:     &alert,
		SentAt:    time.Now().UTC(),
	})
}

// PublishSummary pushes a pass summary to matching subscribers.
func (r *Registry) PublishSummary(projectID string, summary models.SmartSummary) {
	r.publish(Event{
		Kind:      "summary",
		ProjectID: projectID,
		Summary:   &summary,
		SentAt:    time.Now().UTC(),
	})
}

// Subscribers reports the current live connection count.
func (r *Registry) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Shutdown closes every live connection and rejects further attachments.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*client]struct{})
	r.mu.Unlock()

	for _, c := range clients {
		deadline := time.Now().Add(r.writeWait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
		_ = c.conn.Close()
	}
	return ctx.Err()
}

func (r *Registry) publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("event marshal failed", slog.Any("error", err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.projectID != "" && c.projectID != event.ProjectID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Backpressure: drop the laggard, not the event.
			delete(r.clients, c)
			close(c.send)
			r.logger.Warn("dropping slow websocket subscriber",
				slog.String("project_id", c.projectID))
		}
	}
}

func (r *Registry) detach(c *client) {
	r.mu.Lock()
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
	r.mu.Unlock()
	_ = c.conn.Close()
}

func (r *Registry) writePump(c *client) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(r.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				r.detach(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(r.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.detach(c)
				return
			}
		}
	}
}

// readPump keeps the connection's read side serviced so control frames are
// processed; subscriber messages themselves are ignored.
func (r *Registry) readPump(c *client) {
	defer r.detach(c)

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(r.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(r.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
