package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	appmiddleware "github.com/fieldclock/server/internal/middleware"
	"github.com/fieldclock/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Devices connect from native agents, not browsers
		return true
	},
}

// WebSocketHandler handles WebSocket connections for live entry updates
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection godoc
// @Summary WebSocket endpoint for live updates
// @Description Upgrades to a WebSocket connection that receives entry commit and rejection events for the authenticated worker
// @Tags websocket
// @Security ApiKeyAuth
// @Router /api/ws [get]
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	worker := appmiddleware.GetWorkerFromContext(r.Context())
	if worker == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := h.hub.NewClient(uuid.New().String(), worker.ID, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case services.WSTypePing:
		h.sendToClient(client, services.WSMessage{Type: services.WSTypePong})
	case services.WSTypeSubscribe:
		// Workers are implicitly subscribed to their own entry events;
		// acknowledge so agents can confirm the channel is live.
		h.sendToClient(client, services.WSMessage{Type: services.WSTypePong})
	}
}

func (h *WebSocketHandler) sendToClient(client *services.WSClient, msg services.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
