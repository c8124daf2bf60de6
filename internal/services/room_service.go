package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/valyala/fasthttp"
)

var (
	ErrPasswordRequired = errors.New("room requires a password")
	ErrWrongPassword    = errors.New("wrong room password")
	ErrNotJSON          = errors.New("server did not reply with JSON")
)

// TransportError is a failed REST call to the chat server.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is true for timeouts, connection failures, 5xx and 429 replies, and
// non-JSON bodies (usually a proxy error page). Other 4xx replies are final.
func (e *TransportError) Retryable() bool {
	if errors.Is(e.Err, ErrNotJSON) {
		return true
	}
	return e.Status == 0 || e.Status >= 500 || e.Status == fasthttp.StatusTooManyRequests
}

// RoomService talks to the chat server's REST API.
type RoomService struct {
	client  *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
	log     *slog.Logger
}

func NewRoomService(baseURL, token string, timeout time.Duration) *RoomService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RoomService{
		client: &fasthttp.Client{
			Name:                "chatsync",
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the logger used for skipped history entries.
func (s *RoomService) WithLogger(log *slog.Logger) *RoomService {
	if log != nil {
		s.log = log.With("component", "rooms")
	}
	return s
}

// ListRooms returns the public room directory.
func (s *RoomService) ListRooms(ctx context.Context) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	if err := s.do(ctx, "list rooms", fasthttp.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// JoinRoom joins roomID, sending password when the room is protected.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, password string) (*models.RoomInfo, error) {
	var info models.RoomInfo
	path := "/api/rooms/" + url.PathEscape(roomID) + "/join"
	if err := s.do(ctx, "join room", fasthttp.MethodPost, path, models.JoinRoomRequest{Password: password}, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = roomID
	}
	return &info, nil
}

// History returns stored messages of roomID, oldest first.
func (s *RoomService) History(ctx context.Context, roomID string) ([]models.Message, error) {
	var wire []models.WireMessage
	path := "/api/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := s.do(ctx, "load history", fasthttp.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	now := time.Now()
	msgs := make([]models.Message, 0, len(wire))
	for _, w := range wire {
		if w.RoomID == "" {
			w.RoomID = roomID
		}
		m, err := w.Decode(now)
		if err != nil {
			metrics.DroppedFrames.Inc()
			s.log.Warn("skipping undecodable history entry", "room", roomID, "id", w.ID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Participants returns the current roster of roomID.
func (s *RoomService) Participants(ctx context.Context, roomID string) ([]models.Participant, error) {
	var ps []models.Participant
	path := "/api/rooms/" + url.PathEscape(roomID) + "/participants"
	if err := s.do(ctx, "load participants", fasthttp.MethodGet, path, nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (s *RoomService) do(ctx context.Context, op, method, path string, body, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if s.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+s.token)
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(data)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return s.statusError(op, status, resp.Body())
	}
	if !strings.HasPrefix(string(resp.Header.ContentType()), "application/json") {
		return &TransportError{Op: op, Status: status, Err: ErrNotJSON}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}

func (s *RoomService) statusError(op string, status int, body []byte) error {
	var apiErr models.APIError
	_ = json.Unmarshal(body, &apiErr)
	switch {
	case apiErr.Code == "password_required":
		return ErrPasswordRequired
	case apiErr.Code == "wrong_password":
		return ErrWrongPassword
	}
	msg := apiErr.Message
	if msg == "" {
		msg = fasthttp.StatusMessage(status)
	}
	return &TransportError{Op: op, Status: status, Err: errors.New(msg)}
}
