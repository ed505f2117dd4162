package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one upgraded connection until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID) {
	hub.serve(NewClient(hub, c, userID))
}

// serve returns only after both pumps are done: the upgraded connection is
// released for reuse as soon as the handler returns.
func (h *Hub) serve(client *Client) {
	if !h.Register(client) {
		_ = client.Conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
	<-client.done
}
