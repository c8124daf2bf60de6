package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, h http.HandlerFunc) *RoomService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRoomService(srv.URL+"/", "tok", time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRoomServiceListRooms(t *testing.T) {
	svc := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.RoomSummary{{ID: "general", Name: "General", ParticipantCount: 3}})
	})

	rooms, err := svc.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "General", rooms[0].Name)
}

func TestRoomServiceJoinPasswordFlow(t *testing.T) {
	svc := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req models.JoinRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Password {
		case "":
			writeJSON(w, http.StatusUnauthorized, models.APIError{Code: "password_required", Message: "password required"})
		case "letmein":
			writeJSON(w, http.StatusOK, models.RoomInfo{ID: "vip", Name: "VIP", Moderators: []string{"mod"}})
		default:
			writeJSON(w, http.StatusForbidden, models.APIError{Code: "wrong_password"})
		}
	})
	ctx := context.Background()

	_, err := svc.JoinRoom(ctx, "vip", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = svc.JoinRoom(ctx, "vip", "guess")
	assert.ErrorIs(t, err, ErrWrongPassword)

	info, err := svc.JoinRoom(ctx, "vip", "letmein")
	require.NoError(t, err)
	assert.Equal(t, "VIP", info.Descriptor().Title)
	assert.Equal(t, []string{"mod"}, info.Moderators)
}

func TestRoomServiceHistoryDecodesTimestamps(t *testing.T) {
	svc := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms/general/messages", r.URL.Path)
		writeJSON(w, http.StatusOK, []models.WireMessage{
			{ID: "m1", Sender: "bob", Content: "hi", Timestamp: 1714564800},
			{ID: "m2", Sender: "bob", Content: "?", Type: "sticker"},
			{ID: "m3", RoomID: "general", Sender: "carol", Content: "gift", Type: "gift", Timestamp: 1714564800500},
		})
	})

	dropped := testutil.ToFloat64(metrics.DroppedFrames)
	msgs, err := svc.History(context.Background(), "general")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.DroppedFrames), "the sticker entry is counted as dropped")
	assert.Equal(t, "general", msgs[0].RoomID)
	assert.Equal(t, time.UnixMilli(1714564800000), msgs[0].Timestamp)
	assert.Equal(t, models.KindGift, msgs[1].Kind)
}

func TestRoomServiceTransportErrors(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		wantStatus    int
		wantRetryable bool
	}{
		{
			name: "html reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			wantStatus:    http.StatusOK,
			wantRetryable: true,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadGateway, models.APIError{Message: "upstream down"})
			},
			wantStatus:    http.StatusBadGateway,
			wantRetryable: true,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotFound, models.APIError{Message: "no such room"})
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "too slow",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(1500 * time.Millisecond)
				writeJSON(w, http.StatusOK, []models.Participant{})
			},
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newBackend(t, tt.handler)

			_, err := svc.Participants(context.Background(), "general")
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantStatus, te.Status)
			if tt.wantStatus == 0 {
				assert.True(t, te.Retryable())
			} else {
				assert.Equal(t, tt.wantRetryable, te.Retryable())
			}
		})
	}
}

func TestRoomServiceHonoursContext(t *testing.T) {
	svc := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Participant{})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Participants(ctx, "general")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}
