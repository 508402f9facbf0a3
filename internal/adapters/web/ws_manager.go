package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// WSMessage is the envelope for every frame pushed to live clients.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WSManager tracks live dashboard connections and pushes collection
// events to them. It implements ports.CollectionPublisher.
type WSManager struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
}

// NewWSManager creates a websocket hub that accepts same-origin requests
// and the given frontend origin.
func NewWSManager(allowedOrigin string) *WSManager {
	return &WSManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// Allow same-origin (no Origin header)
				if origin == "" {
					return true
				}
				if origin == allowedOrigin {
					return true
				}

				log.Printf("WebSocket: rejected origin: %s", origin)
				return false
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start runs the keepalive loop until ctx is cancelled.
func (m *WSManager) Start(ctx context.Context) {
	go m.keepAlive(ctx)
}

// HandleWebSocket upgrades the request and tracks the connection until
// the client goes away.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	log.Printf("WebSocket connected: %s", conn.RemoteAddr())

	// Drain incoming frames until the connection drops.
	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			log.Printf("WebSocket disconnected: %s", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// PublishCollection pushes a finished collection run to every connected
// client. The broadcast runs asynchronously so the collector never waits
// on slow clients.
func (m *WSManager) PublishCollection(event domain.CollectionEvent) {
	msg := WSMessage{
		Type:    "collection",
		Payload: event,
	}
	go m.broadcastMessage(msg)
}

// ClientCount returns the number of tracked connections.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *WSManager) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.pingClients()
		}
	}
}

// pingClients probes every connection and prunes the dead ones.
func (m *WSManager) pingClients() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Println("JSON marshal error:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}
