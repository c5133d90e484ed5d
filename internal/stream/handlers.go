package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:vehicleID", websocket.New(func(c *websocket.Conn) {
		vehicleID := c.Params("vehicleID")
		client := hub.Register(vehicleID)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// closing Send lets the writer drain and exit
		hub.Unregister(client)
		<-done
	}))
}
