package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts sockets, records received frames and lets tests push frames.
type fakeServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	tokens   []string
	received []models.Envelope
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.tokens = append(f.tokens, r.URL.Query().Get("access_token"))
	f.mu.Unlock()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, env)
		f.mu.Unlock()
	}
}

func (f *fakeServer) latest() *websocket.Conn {
	var conn *websocket.Conn
	require.Eventually(f.t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.conns) == 0 {
			return false
		}
		conn = f.conns[len(f.conns)-1]
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func (f *fakeServer) receivedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, e := range f.received {
		out = append(out, e.Event)
	}
	return out
}

func startClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:             "secret",
		ReconnectInterval: 20 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return c, fake
}

func next(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case env := <-c.Events():
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.Envelope{}
	}
}

func TestClientEmitBeforeConnect(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1"}, nil)

	err := c.Emit(models.EventJoinRoom, models.JoinRoom{RoomID: "general"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConnected))

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Retryable())
	assert.False(t, c.Connected())
}

func TestClientRoundTrip(t *testing.T) {
	c, fake := startClient(t)

	assert.Equal(t, models.EventConnect, next(t, c).Event)
	assert.True(t, c.Connected())

	require.NoError(t, c.Emit(models.EventJoinRoom, models.JoinRoom{RoomID: "general", Username: "alice"}))
	assert.Eventually(t, func() bool {
		return len(fake.receivedEvents()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{models.EventJoinRoom}, fake.receivedEvents())
	fake.mu.Lock()
	assert.Equal(t, "secret", fake.tokens[0])
	fake.mu.Unlock()

	frame := `{"event":"new-message","data":{"id":"m1","roomId":"general","sender":"bob","content":"hey"}}`
	require.NoError(t, fake.latest().WriteMessage(websocket.TextMessage, []byte(frame)))

	env := next(t, c)
	assert.Equal(t, models.EventNewMessage, env.Event)
	var w models.WireMessage
	require.NoError(t, json.Unmarshal(env.Data, &w))
	assert.Equal(t, "m1", w.ID)
}

func TestClientSkipsMalformedFrames(t *testing.T) {
	c, fake := startClient(t)
	next(t, c)

	conn := fake.latest()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"user-left","data":{}}`)))

	assert.Equal(t, models.EventUserLeft, next(t, c).Event)
}

func TestClientReconnects(t *testing.T) {
	c, fake := startClient(t)
	next(t, c)

	require.NoError(t, fake.latest().Close())

	assert.Equal(t, models.EventConnect, next(t, c).Event)
	assert.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.conns) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
