package realtime

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves the websocket endpoint: it registers the connection with
// the hub, drains broadcast messages onto the socket, and unregisters on
// any read or write failure.
func Handler(hub *Hub, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := hub.Register()
		defer hub.Unregister(client)

		// Reader only watches for close/error; observers never send.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-client.Receive():
				if !ok {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("websocket write failed", zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	})
}
