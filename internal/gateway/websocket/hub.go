// Package websocket implements the event broadcast hub and its client
// connections.
package websocket

import (
	"sync"

	"steward/internal/events"
	"steward/pkg/logger"
)

// ResolveHandler handles attention resolutions submitted over WebSocket.
type ResolveHandler func(attentionID, behavior, message string) error

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Session to clients mapping for targeted broadcasts.
	sessions map[string]map[*Client]bool

	// Register requests from clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Broadcast messages to clients.
	broadcast chan *BroadcastMessage

	mu sync.RWMutex

	resolveHandler ResolveHandler
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// SetResolveHandler sets the callback for attention resolutions.
func (h *Hub) SetResolveHandler(handler ResolveHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolveHandler = handler
}

// HandleResolve processes an attention resolution from a client.
func (h *Hub) HandleResolve(attentionID, behavior, message string) error {
	h.mu.RLock()
	handler := h.resolveHandler
	h.mu.RUnlock()

	if handler == nil {
		logger.Warn().
			Str("attention_id", attentionID).
			Msg("Resolution received but no handler configured")
		return nil
	}

	return handler(attentionID, behavior, message)
}

// Publish implements events.Publisher. Every event is fanned out to
// all connected clients; slow clients are skipped, never waited on.
func (h *Hub) Publish(ev events.Event) {
	data, err := events.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Str("type", ev.EventType()).Msg("Failed to marshal event")
		return
	}
	h.broadcast <- &BroadcastMessage{Data: data}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				for session := range client.sessions {
					if clients, ok := h.sessions[session]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.sessions, session)
						}
					}
				}
			}
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.Session == "" {
				for client := range h.clients {
					select {
					case client.send <- msg.Data:
					default:
						// Client buffer full, skip
					}
				}
			} else {
				if clients, ok := h.sessions[msg.Session]; ok {
					for client := range clients {
						select {
						case client.send <- msg.Data:
						default:
							// Client buffer full, skip
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a session's subscriber list.
func (h *Hub) Subscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.sessions[session] = true
	if h.sessions[session] == nil {
		h.sessions[session] = make(map[*Client]bool)
	}
	h.sessions[session][client] = true

	logger.Debug().
		Str("client_id", client.id).
		Str("session", session).
		Msg("Client subscribed to session")
}

// Unsubscribe removes a client from a session's subscriber list.
func (h *Hub) Unsubscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.sessions, session)
	if clients, ok := h.sessions[session]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, session)
		}
	}

	logger.Debug().
		Str("client_id", client.id).
		Str("session", session).
		Msg("Client unsubscribed from session")
}

// Broadcast sends a message to all clients subscribed to a session.
func (h *Hub) Broadcast(session string, data []byte) {
	h.broadcast <- &BroadcastMessage{Session: session, Data: data}
}

// BroadcastAll sends a message to all connected clients.
func (h *Hub) BroadcastAll(data []byte) {
	h.broadcast <- &BroadcastMessage{Session: "", Data: data}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
