package handlers

import (
	"context"
	"log/slog"
	"strings"

	"chatsync/internal/chat"
	"chatsync/internal/services"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// streamFrame is what a render subscriber receives.
type streamFrame struct {
	Event    string            `json:"event"`
	Update   *chat.Update      `json:"update,omitempty"`
	Snapshot *chat.SessionView `json:"snapshot,omitempty"`
}

// RenderStreamHandler streams session updates to a front end. The first frame is a
// full snapshot; every later frame is one update.
func RenderStreamHandler(session Chat, hub *Hub, log *slog.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		id, updates := hub.Subscribe()
		conn := &utils.SafeConn{Conn: c}
		log := log.With("subscriber", id)
		log.Info("render subscriber connected")

		defer func() {
			hub.Unsubscribe(id)
			c.Close()
			log.Info("render subscriber disconnected")
		}()

		view, err := session.Snapshot(context.Background())
		if err != nil {
			utils.LogError(log, err, "render stream snapshot")
			return
		}
		if err := conn.SendJSON(streamFrame{Event: "snapshot", Snapshot: &view}); err != nil {
			return
		}

		// The front end never sends anything meaningful; reading detects the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						utils.LogError(log, err, "render stream read")
					}
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.SendJSON(streamFrame{Event: "update", Update: &u}); err != nil {
					utils.LogError(log, err, "render stream write")
					return
				}
			}
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on websocket routes.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware requires a bridge token when secret is set. The token comes from
// the `access_token` query parameter or a Bearer Authorization header.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		token := c.Query("access_token")
		if token == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
		}

		claims, err := services.ValidateBridgeToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		if u, ok := claims["username"].(string); ok {
			c.Locals("username", u)
		}
		return c.Next()
	}
}
