package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mason50x/sentinel/internal/tracker"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same permissive policy as the REST surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusFrame is the message pushed to WebSocket subscribers.
type statusFrame struct {
	Type      string         `json:"type"`
	Status    tracker.Status `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// hub tracks connected WebSocket subscribers and fans status frames out to
// them. Slow clients are dropped rather than allowed to block a broadcast.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	log     *logrus.Entry
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newHub(log *logrus.Entry) *hub {
	return &hub{
		clients: make(map[*wsClient]struct{}),
		log:     log,
	}
}

// broadcast sends a status frame to every connected subscriber.
func (h *hub) broadcast(status tracker.Status) {
	payload, err := json.Marshal(statusFrame{
		Type:      "status",
		Status:    status,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.WithError(err).Error("failed to encode status frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Send buffer full; the client is not keeping up.
			delete(h.clients, client)
			client.close()
		}
	}
}

func (h *hub) register(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
}

func (h *hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// handleWebSocket upgrades the connection and streams status frames. The
// first frame is the current snapshot so a subscriber never starts blind.
// GET /ws.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	s.hub.register(client)

	s.log.WithField("remote", r.RemoteAddr).Debug("websocket subscriber connected")

	go s.writePump(client)
	go s.readPump(client)

	// Initial frame.
	s.hub.broadcast(s.tracker.Snapshot())
}

// writePump drains the client's send channel onto the wire and keeps the
// connection alive with pings.
func (s *Server) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; its job is detecting disconnects.
func (s *Server) readPump(client *wsClient) {
	defer s.hub.unregister(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
