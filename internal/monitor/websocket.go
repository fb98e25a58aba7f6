package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/engine"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before new ones are dropped
	sendQueueSize = 64
)

// Event is the JSON form of one engine event.
type Event struct {
	Time    time.Time           `json:"time"`
	Reason  string              `json:"reason"`
	USN     string              `json:"usn"`
	Subject string              `json:"subject"`
	Type    string              `json:"type"`
	Address string              `json:"address,omitempty"`
	Headers map[string][]string `json:"headers"`
}

// NewEvent converts an engine event.
func NewEvent(n *protocol.Notification, reason engine.Reason, now time.Time) Event {
	ev := Event{
		Time:    now,
		Reason:  reason.String(),
		USN:     n.USN(),
		Subject: n.Subject(),
		Type:    n.Type(),
		Headers: make(map[string][]string),
	}
	if n.Address != nil {
		ev.Address = n.Address.String()
	}
	for _, f := range n.Header().Fields() {
		ev.Headers[f.Name] = append(ev.Headers[f.Name], f.Values...)
	}
	return ev
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// client is one event stream subscriber
type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan Event
	done       chan struct{}
	closeOnce  sync.Once
}

// close asks the write pump to send a close frame and release the connection.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan Event, sendQueueSize),
		done:       make(chan struct{}),
	}
	if !s.addClient(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogConnection(c.remoteAddr, "websocket_opened")

	go s.writePump(c)
	go s.readPump(c)
}

// readPump consumes control frames and detects the peer going away. Clients
// are not expected to send data.
func (s *Server) readPump(c *client) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Event stream closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.remoteAddr, "received", msgType, data)
	}
}

// writePump is the only writer of c.conn.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
		s.removeClient(c)
		logging.LogConnection(c.remoteAddr, "websocket_closed")
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				logging.Error("Failed to marshal event", zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("Event stream write failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
				return
			}
			logging.LogWebSocketMessage(c.remoteAddr, "sent", websocket.TextMessage, data)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
