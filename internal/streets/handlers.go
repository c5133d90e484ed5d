package streets

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type subscribeRequest struct {
	Type     string            `json:"type"`
	Location map[string]string `json:"location"`
}

func RegisterRoutes(r fiber.Router, broker *Broker) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client, ok := awaitSubscribe(c, broker)
		if !ok {
			return
		}

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
		broker.Unsubscribe(client)
		<-done
	}))
}

// awaitSubscribe reads the opening subscribe message and attaches the client
// to its area session. Protocol errors are reported over the socket before
// closing.
func awaitSubscribe(c *websocket.Conn, broker *Broker) (*BrokerClient, bool) {
	_, raw, err := c.ReadMessage()
	if err != nil {
		return nil, false
	}

	var req subscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Type != "subscribe" {
		writeControl(c, "error", "expected a subscribe message")
		return nil, false
	}
	areaID := req.Location["area_id"]
	if areaID == "" {
		writeControl(c, "error", "subscribe requires location.area_id")
		return nil, false
	}

	client, err := broker.Subscribe(context.Background(), areaID)
	if err != nil {
		log.Printf("streets: subscribe to area %s failed: %v", areaID, err)
		writeControl(c, "error", "area unavailable")
		return nil, false
	}
	writeControl(c, "info", "subscribed to "+areaID)
	return client, true
}

func writeControl(c *websocket.Conn, msgType, message string) {
	payload, _ := json.Marshal(outMessage{Type: msgType, Message: message})
	_ = c.WriteMessage(websocket.TextMessage, payload)
}
