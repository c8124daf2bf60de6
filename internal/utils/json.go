package utils

import (
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// SafeConn serializes writes to a fiber websocket, which is not safe for concurrent writers.
type SafeConn struct {
	mu   sync.Mutex
	Conn *websocket.Conn
}

// SendJSON writes payload as one JSON frame.
func (c *SafeConn) SendJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(payload)
}

// LogError logs an error if it's not nil
func LogError(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error(context, "error", err)
	}
}
