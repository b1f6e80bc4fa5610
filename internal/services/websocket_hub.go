package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types pushed to devices
const (
	WSTypeEntryCommitted = "entry_committed"
	WSTypeEntryRejected  = "entry_rejected"
	WSTypeSubscribe      = "subscribe"
	WSTypePing           = "ping"
	WSTypePong           = "pong"
)

// EntryEventPayload is sent when a clock event is committed or rejected
type EntryEventPayload struct {
	EventID       string `json:"eventId"`
	OperationKind string `json:"operationKind"`
	EntryID       string `json:"entryId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Replayed      bool   `json:"replayed"`
}

// WSClient represents a connected device
type WSClient struct {
	ID         string
	WorkerID   string
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	mu         sync.Mutex
	closedOnce sync.Once
}

// WebSocketHub manages device connections so a worker's other devices learn
// about commits made by any of them
type WebSocketHub struct {
	clients     map[*WSClient]bool
	workerConns map[string]map[*WSClient]bool
	register    chan *WSClient
	unregister  chan *WSClient
	broadcast   chan *broadcastMsg
	mu          sync.RWMutex
}

type broadcastMsg struct {
	workerID string // if set, only send to this worker's devices
	message  []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:     make(map[*WSClient]bool),
		workerConns: make(map[string]map[*WSClient]bool),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
		broadcast:   make(chan *broadcastMsg, 256),
	}
}

// Run starts the hub's main loop
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.WorkerID != "" {
				if h.workerConns[client.WorkerID] == nil {
					h.workerConns[client.WorkerID] = make(map[*WSClient]bool)
				}
				h.workerConns[client.WorkerID][client] = true
			}
			h.mu.Unlock()
			log.Printf("WebSocket client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.WorkerID != "" {
					if conns, ok := h.workerConns[client.WorkerID]; ok {
						delete(conns, client)
						if len(conns) == 0 {
							delete(h.workerConns, client.WorkerID)
						}
					}
				}
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected: %s", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.workerID != "" {
				targets = h.workerConns[msg.workerID]
			}
			for client := range targets {
				select {
				case client.Send <- msg.message:
				default:
					// Client buffer full, close connection
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	h.unregister <- client
}

// SendToWorker sends a message to all connected devices of a worker
func (h *WebSocketHub) SendToWorker(workerID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	h.broadcast <- &broadcastMsg{
		workerID: workerID,
		message:  data,
	}
}

// BroadcastAll sends a message to all connected clients
func (h *WebSocketHub) BroadcastAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	h.broadcast <- &broadcastMsg{message: data}
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient creates a new WebSocket client connected to this hub
func (h *WebSocketHub) NewClient(id, workerID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:       id,
		WorkerID: workerID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		hub:      h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump pumps messages from the websocket connection to the hub
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}
