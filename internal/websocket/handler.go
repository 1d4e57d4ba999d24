package websocket

import (
	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.FastHTTPUpgrader
}

// NewHandler builds the /ws upgrade handler. allowOrigin decides which
// browser origins may connect; nil accepts all.
func NewHandler(hub *Hub, allowOrigin func(origin string) bool) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
				origin := string(ctx.Request.Header.Peek("Origin"))
				if origin == "" || allowOrigin == nil {
					return true
				}
				return allowOrigin(origin)
			},
		},
	}
}

// HandleFastHTTP handles WebSocket upgrade requests for FastHTTP
func (h *Handler) HandleFastHTTP(ctx *fasthttp.RequestCtx) {
	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		client := NewClient(h.hub, conn)
		client.enqueue(&OutgoingMessage{
			Type:     MessageTypeConnected,
			ClientID: client.id,
		})
		h.hub.Register(client)

		log.Info().
			Str("clientID", client.id).
			Str("remoteAddr", conn.RemoteAddr().String()).
			Msg("[WS] Client connected")

		go client.WritePump()
		client.ReadPump()
	})

	if err != nil {
		log.Error().Err(err).Msg("[WS] Failed to upgrade connection")
		return
	}
}
