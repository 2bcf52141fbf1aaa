package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches the connection to the hub and blocks until it closes.
// initial, when not nil, is queued before any live update.
func ServeWs(hub *Hub, c *websocket.Conn, patientID, operatorID string, initial []byte) {
	client := &Client{Hub: hub, Conn: c, PatientID: patientID, OperatorID: operatorID, Send: make(chan []byte, 256)}
	if initial != nil {
		client.Send <- initial
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
