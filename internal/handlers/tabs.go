package handlers

import (
	"strings"

	"chatsync/internal/chat"

	"github.com/gofiber/fiber/v2"
)

type openTabRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
	Peer     string `json:"peer"`
}

type sendRequest struct {
	Content string `json:"content"`
}

type scrollRequest struct {
	Scrolling  *bool `json:"scrolling"`
	AutoScroll *bool `json:"autoScroll"`
}

// param copies a route parameter; fiber reuses the underlying buffer after the handler returns.
func param(c *fiber.Ctx, name string) string {
	return strings.Clone(c.Params(name))
}

// ListRoomsHandler proxies the server's room directory.
func ListRoomsHandler(rooms RoomLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rooms == nil {
			return respondError(c, chat.ErrNoBackend)
		}
		list, err := rooms.ListRooms(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	}
}

func ListTabsHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := session.Snapshot(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

// OpenTabHandler joins a room ({roomId, password}) or opens a private chat ({peer}).
func OpenTabHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openTabRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		var (
			idx int
			err error
		)
		switch {
		case strings.TrimSpace(req.Peer) != "":
			idx, err = session.OpenPrivate(c.UserContext(), req.Peer)
		case strings.TrimSpace(req.RoomID) != "":
			idx, err = session.JoinRoom(c.UserContext(), strings.TrimSpace(req.RoomID), req.Password)
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "roomId or peer required"})
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"index": idx})
	}
}

func CloseTabHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := session.CloseTab(c.UserContext(), param(c, "id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func FocusHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := c.ParamsInt("index")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "index must be a number"})
		}
		if err := session.Focus(c.UserContext(), idx); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MessagesHandler returns the visible messages of a tab with their delivery status.
func MessagesHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := session.Messages(c.UserContext(), param(c, "id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(msgs)
	}
}

// SendHandler performs a local send. When the push channel is down the provisional
// message is still returned next to the error.
func SendHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		msg, err := session.Send(c.UserContext(), param(c, "id"), req.Content)
		if err != nil {
			if msg.ID != "" {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error":     err.Error(),
					"retryable": retryable(err),
					"message":   chat.MessageView{WireMessage: msg.Wire(), Status: chat.StatusProvisional},
				})
			}
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(chat.MessageView{WireMessage: msg.Wire(), Status: chat.StatusProvisional})
	}
}

// ScrollHandler records scroll state reported by the front end.
func ScrollHandler(session Chat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req scrollRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.Scrolling != nil {
			if err := session.SetScrolling(c.UserContext(), *req.Scrolling); err != nil {
				return respondError(c, err)
			}
		}
		if req.AutoScroll != nil {
			if err := session.SetAutoScroll(c.UserContext(), *req.AutoScroll); err != nil {
				return respondError(c, err)
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
