// Package messaging pushes job events to websocket subscribers. Each job
// has its own hub; the job owner and assigned workers may join it.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/workmatch/api/internal/marketplace"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

type wsEvent struct {
	Type  string      `json:"type"`
	JobID string      `json:"jobId"`
	At    time.Time   `json:"at"`
	Data  interface{} `json:"data"`
}

// client is one watcher. Messages are queued on send and written by the
// client's own writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// writePump drains send until it is closed, then closes the connection.
func (c *client) writePump(logger *slog.Logger) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("ws write failed", slog.Any("error", err))
			// Closing ends the read loop, which unregisters c and closes send.
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

type hub struct {
	jobID   string
	clients map[*client]bool
	mu      sync.Mutex
}

// broadcast queues evt for every client without waiting on the network.
// A client whose queue is full is dropped.
func (h *hub) broadcast(evt wsEvent, logger *slog.Logger) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal ws event", slog.String("type", evt.Type), slog.Any("error", err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logger.Warn("dropping slow ws client", slog.String("job_id", h.jobID))
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// remove drops c if it is still registered. It reports whether c was present.
func (h *hub) remove(c *client) bool {
	if !h.clients[c] {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// Watcher decides who may subscribe to a job.
type Watcher interface {
	CanWatch(ctx context.Context, callerID, jobID string) error
}

// Hub routes events to per-job hubs. It implements marketplace.Publisher.
type Hub struct {
	mu       sync.Mutex
	hubs     map[string]*hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

var _ marketplace.Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		hubs: make(map[string]*hub),
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) register(jobID string, c *client) *hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	jh, ok := h.hubs[jobID]
	if !ok {
		jh = &hub{jobID: jobID, clients: make(map[*client]bool)}
		h.hubs[jobID] = jh
	}
	jh.mu.Lock()
	jh.clients[c] = true
	jh.mu.Unlock()
	return jh
}

// unregister removes c and forgets the job's hub once it is empty.
func (h *Hub) unregister(jh *hub, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	jh.mu.Lock()
	jh.remove(c)
	empty := len(jh.clients) == 0
	jh.mu.Unlock()
	if empty && h.hubs[jh.jobID] == jh {
		delete(h.hubs, jh.jobID)
	}
}

// Subscribers reports how many connections are watching jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	jh, ok := h.hubs[jobID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	jh.mu.Lock()
	defer jh.mu.Unlock()
	return len(jh.clients)
}

// Publish queues evt for everyone watching its job and returns without
// waiting for delivery. Jobs nobody watches are skipped.
func (h *Hub) Publish(_ context.Context, evt marketplace.Event) error {
	h.mu.Lock()
	jh, ok := h.hubs[evt.JobID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	jh.broadcast(wsEvent{Type: evt.Type, JobID: evt.JobID, At: evt.At, Data: evt.Data}, h.log)
	return nil
}

// Serve upgrades GET /jobs/:id/ws for a participant of the job.
func (h *Hub) Serve(w Watcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, _ := c.Get("user_id").(string)
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		jobID := c.Param("id")
		if err := w.CanWatch(c.Request().Context(), userID, jobID); err != nil {
			return err
		}

		ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil
		}

		cl := newClient(ws)
		jh := h.register(jobID, cl)
		go cl.writePump(h.log)
		h.log.Debug("ws joined", slog.String("job_id", jobID), slog.String("user_id", userID))
		jh.broadcast(wsEvent{Type: "presence.join", JobID: jobID, At: time.Now().UTC(), Data: echo.Map{"userId": userID}}, h.log)

		// Server push only; client frames are read and discarded.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		h.unregister(jh, cl)
		jh.broadcast(wsEvent{Type: "presence.leave", JobID: jobID, At: time.Now().UTC(), Data: echo.Map{"userId": userID}}, h.log)
		h.log.Debug("ws left", slog.String("job_id", jobID), slog.String("user_id", userID))
		return nil
	}
}
