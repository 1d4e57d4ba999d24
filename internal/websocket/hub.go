package websocket

import (
	"sync"

	"github.com/reelbox/reelbox_server/internal/media"
	"github.com/rs/zerolog/log"
)

const broadcastBufferSize = 256

// Hub fans library changes out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *MediaMessage
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *MediaMessage, broadcastBufferSize),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Stop disconnects all clients and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	log.Info().
		Str("clientID", client.id).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.close()

	log.Info().
		Str("clientID", client.id).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
}

func (h *Hub) broadcastToAll(msg *MediaMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg) {
			log.Warn().
				Str("clientID", client.id).
				Str("type", string(msg.Type)).
				Msg("[WS] Client send buffer full, dropping message")
		}
	}

	log.Debug().
		Str("type", string(msg.Type)).
		Int("recipients", len(clients)).
		Msg("[WS] Broadcast complete")
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

func (h *Hub) publish(msg *MediaMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Str("type", string(msg.Type)).Msg("[WS] Broadcast queue full, dropping message")
	}
}

func (h *Hub) MediaCreated(m *media.Media) {
	h.publish(&MediaMessage{Type: MessageTypeMediaCreated, Media: m})
}

func (h *Hub) MediaDeleted(id string) {
	h.publish(&MediaMessage{Type: MessageTypeMediaDeleted, MediaID: id})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ media.Notifier = (*Hub)(nil)
