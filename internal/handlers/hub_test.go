package handlers

import (
	"io"
	"log/slog"
	"testing"

	"chatsync/internal/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(discardLogger())
	idA, a := hub.Subscribe()
	_, b := hub.Subscribe()
	require.NotEqual(t, "", idA)
	assert.Equal(t, 2, hub.Count())

	hub.Publish(chat.Update{Kind: chat.UpdateTabs, RoomID: "general"})
	assert.Equal(t, "general", (<-a).RoomID)
	assert.Equal(t, "general", (<-b).RoomID)

	hub.Unsubscribe(idA)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Count())
	hub.Unsubscribe(idA)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(discardLogger())
	_, ch := hub.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(chat.Update{Kind: chat.UpdateMessages})
	}
	assert.Len(t, ch, subscriberBuffer)

	hub.Close()
	assert.Equal(t, 0, hub.Count())
}
