package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/domain/order"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

// ConnectionManager fans queue snapshots out to connected UI clients
// over WebSocket. Each client gets a buffered send channel and a writer
// goroutine; a client that cannot keep up is dropped rather than
// blocking the engine.
type ConnectionManager struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	latest  []byte
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewConnectionManager creates an empty hub.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Register adopts an upgraded connection. The latest snapshot, if any,
// is queued immediately so the client renders current state without
// waiting for the next mutation.
func (m *ConnectionManager) Register(conn *websocket.Conn) {
	client := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.clients[client] = struct{}{}
	if m.latest != nil {
		client.send <- m.latest
	}
	n := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("websocket client connected", zap.Int("clients", n))
	go m.writePump(client)
	go m.readPump(client)
}

// Broadcast serializes the snapshot once and queues it to every client.
func (m *ConnectionManager) Broadcast(snapshot order.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		m.logger.Error("marshal snapshot failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = payload
	for client := range m.clients {
		select {
		case client.send <- payload:
		default:
			m.dropLocked(client)
			m.logger.Warn("websocket client dropped, send buffer full")
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *ConnectionManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Close disconnects every client and rejects further registrations.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for client := range m.clients {
		m.dropLocked(client)
	}
}

func (m *ConnectionManager) dropLocked(client *wsClient) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	close(client.send)
}

func (m *ConnectionManager) remove(client *wsClient) {
	m.mu.Lock()
	m.dropLocked(client)
	m.mu.Unlock()
}

// writePump drains the client's send channel onto the wire and keeps
// the connection alive with pings. Closing the send channel ends the
// pump and the connection.
func (m *ConnectionManager) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				m.remove(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.remove(client)
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is pong handling and
// noticing the peer going away.
func (m *ConnectionManager) readPump(client *wsClient) {
	defer m.remove(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
