package handlers

import "github.com/gofiber/fiber/v2"

type moderationRequest struct {
	Username string `json:"username"`
	Action   string `json:"action"`
}

// KickHandler asks the server to remove a user from the tab's room.
func KickHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req moderationRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := session.Kick(c.UserContext(), param(c, "id"), req.Username); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

// MuteHandler asks the server to mute or unmute a user; action defaults to mute.
func MuteHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req moderationRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := session.Mute(c.UserContext(), param(c, "id"), req.Username, req.Action); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

func BlockHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := session.Block(c.UserContext(), param(c, "user")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func UnblockHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := session.Unblock(c.UserContext(), param(c, "user")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
