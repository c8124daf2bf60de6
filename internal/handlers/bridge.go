package handlers

import (
	"context"
	"errors"
	"log/slog"

	"chatsync/internal/chat"
	"chatsync/internal/models"
	"chatsync/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat is the session surface the bridge drives.
type Chat interface {
	Snapshot(ctx context.Context) (chat.SessionView, error)
	Messages(ctx context.Context, roomID string) ([]chat.MessageView, error)
	JoinRoom(ctx context.Context, roomID, password string) (int, error)
	OpenPrivate(ctx context.Context, peer string) (int, error)
	CloseTab(ctx context.Context, id string) error
	Focus(ctx context.Context, index int) error
	Send(ctx context.Context, roomID, content string) (models.Message, error)
	Kick(ctx context.Context, roomID, target string) error
	Mute(ctx context.Context, roomID, target, action string) error
	Block(ctx context.Context, username string) error
	Unblock(ctx context.Context, username string) error
	SetScrolling(ctx context.Context, scrolling bool) error
	SetAutoScroll(ctx context.Context, enabled bool) error
}

// RoomLister lists the rooms a user can join.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]models.RoomSummary, error)
}

type Deps struct {
	Session   Chat
	Rooms     RoomLister
	Hub       *Hub
	Secret    string
	Log       *slog.Logger
	AccessLog bool
}

// NewBridge builds the local HTTP bridge a front end uses to drive the session.
func NewBridge(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "chatsync",
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	if d.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "subscribers": d.Hub.Count()})
	})

	app.Use(AuthMiddleware(d.Secret))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/rooms", ListRoomsHandler(d.Rooms))

	api.Get("/tabs", ListTabsHandler(d.Session))
	api.Post("/tabs", OpenTabHandler(d.Session))
	api.Delete("/tabs/:id", CloseTabHandler(d.Session))
	api.Post("/tabs/:index/focus", FocusHandler(d.Session))
	api.Get("/tabs/:id/messages", MessagesHandler(d.Session))
	api.Post("/tabs/:id/messages", SendHandler(d.Session))
	api.Post("/tabs/:id/kick", KickHandler(d.Session))
	api.Post("/tabs/:id/mute", MuteHandler(d.Session))

	api.Put("/blocks/:user", BlockHandler(d.Session))
	api.Delete("/blocks/:user", UnblockHandler(d.Session))
	api.Put("/scroll", ScrollHandler(d.Session))

	app.Use("/ws", WSUpgradeMiddleware)
	app.Get("/ws", RenderStreamHandler(d.Session, d.Hub, d.Log))

	return app
}

// respondError maps session and backend errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrPasswordRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "password_required"})
	case errors.Is(err, services.ErrWrongPassword):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "wrong_password"})
	case errors.Is(err, chat.ErrSessionClosed), errors.Is(err, chat.ErrNoBackend):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}

	switch chat.Classify(err) {
	case chat.CategoryModeration:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case chat.CategoryValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case chat.CategoryNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case chat.CategoryTransport:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error(), "retryable": retryable(err)})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
