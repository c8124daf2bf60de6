package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var (
	ErrNotConnected = errors.New("not connected to chat server")
	ErrQueueFull    = errors.New("outbound queue full")
)

// Error is a push-channel failure. All of them are worth retrying.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Retryable() bool { return true }

type Config struct {
	URL               string
	Token             string
	ReconnectInterval time.Duration
	QueueSize         int
}

// Client keeps one websocket to the chat server open, reconnecting when it drops.
// Inbound frames are decoded into envelopes; a synthetic connect envelope is
// delivered after every successful dial.
type Client struct {
	cfg     Config
	dialer  *websocket.Dialer
	log     *slog.Logger
	limiter *rate.Limiter
	events  chan models.Envelope

	mu  sync.Mutex
	out chan []byte
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.With("component", "transport"),
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1),
		events:  make(chan models.Envelope, 256),
	}
}

// Events is the inbound stream. It is never closed.
func (c *Client) Events() <-chan models.Envelope {
	return c.events
}

// Connected reports whether a socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

// Emit queues event for transmission without blocking.
func (c *Client) Emit(event string, payload any) error {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return &Error{Op: "emit " + event, Err: ErrNotConnected}
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return &Error{Op: "emit " + event, Err: ErrQueueFull}
	}
}

// Run dials and serves the connection until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("dial failed", "error", err)
			continue
		}
		metrics.Reconnects.Inc()
		c.log.Info("connected to chat server")
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("connection lost", "error", err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		q := u.Query()
		q.Set("access_token", c.cfg.Token)
		u.RawQuery = q.Encode()
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), header)
	return conn, err
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	out := make(chan []byte, c.cfg.QueueSize)
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
	}()

	c.deliver(ctx, models.Envelope{Event: models.EventConnect})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		return c.readPump(gctx, conn)
	})
	g.Go(func() error {
		return c.writePump(gctx, conn, out)
	})
	return g.Wait()
}

func (c *Client) deliver(ctx context.Context, env models.Envelope) {
	select {
	case c.events <- env:
	case <-ctx.Done():
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error("read failed", "error", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			metrics.DroppedFrames.Inc()
			c.log.Warn("dropping malformed frame", "bytes", len(data))
			continue
		}
		c.deliver(ctx, env)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return ctx.Err()
		case frame := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}
