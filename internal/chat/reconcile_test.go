package chat

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id, sender, content string, at time.Time) models.Message {
	return models.Message{ID: id, RoomID: "general", Sender: sender, Content: content, Timestamp: at, Kind: models.KindMessage}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		list    []models.Message
		in      models.Message
		want    Outcome
		wantIDs []string
	}{
		{
			name:    "append into empty list",
			in:      msg("m1", "bob", "hey", t0),
			want:    OutcomeAppended,
			wantIDs: []string{"m1"},
		},
		{
			name:    "exact id is a duplicate",
			list:    []models.Message{msg("m1", "bob", "hey", t0)},
			in:      msg("m1", "bob", "hey", t0.Add(time.Minute)),
			want:    OutcomeDuplicate,
			wantIDs: []string{"m1"},
		},
		{
			name:    "provisional replaced in place",
			list:    []models.Message{msg("tmp_1", "alice", "hi", t0), msg("m2", "bob", "yo", t0)},
			in:      msg("m9", "alice", "hi", t0.Add(time.Hour)),
			want:    OutcomeConfirmed,
			wantIDs: []string{"m9", "m2"},
		},
		{
			name: "echoed temp id wins over content match",
			list: []models.Message{msg("tmp_1", "alice", "hi", t0), msg("tmp_2", "alice", "hi", t0)},
			in: func() models.Message {
				m := msg("m5", "alice", "hi", t0)
				m.TempID = "tmp_2"
				return m
			}(),
			want:    OutcomeConfirmed,
			wantIDs: []string{"tmp_1", "m5"},
		},
		{
			name: "echoed temp id confirms despite normalised content",
			list: []models.Message{msg("tmp_1", "alice", "hi  ", t0)},
			in: func() models.Message {
				m := msg("m5", "alice", "hi", t0)
				m.TempID = "tmp_1"
				return m
			}(),
			want:    OutcomeConfirmed,
			wantIDs: []string{"m5"},
		},
		{
			name:    "oldest provisional matched first",
			list:    []models.Message{msg("tmp_1", "alice", "hi", t0), msg("tmp_2", "alice", "hi", t0.Add(time.Second))},
			in:      msg("m7", "alice", "hi", t0.Add(time.Second)),
			want:    OutcomeConfirmed,
			wantIDs: []string{"m7", "tmp_2"},
		},
		{
			name:    "near duplicate inside window",
			list:    []models.Message{msg("m1", "bob", "hey", t0)},
			in:      msg("m2", "bob", "hey", t0.Add(500*time.Millisecond)),
			want:    OutcomeNearDuplicate,
			wantIDs: []string{"m1"},
		},
		{
			name:    "near duplicate earlier than existing",
			list:    []models.Message{msg("m1", "bob", "hey", t0)},
			in:      msg("m2", "bob", "hey", t0.Add(-2*time.Second)),
			want:    OutcomeNearDuplicate,
			wantIDs: []string{"m1"},
		},
		{
			name:    "same text outside window appends",
			list:    []models.Message{msg("m1", "bob", "hey", t0)},
			in:      msg("m2", "bob", "hey", t0.Add(3*time.Second)),
			want:    OutcomeAppended,
			wantIDs: []string{"m1", "m2"},
		},
		{
			name:    "same text other sender appends",
			list:    []models.Message{msg("m1", "bob", "hey", t0)},
			in:      msg("m2", "carol", "hey", t0),
			want:    OutcomeAppended,
			wantIDs: []string{"m1", "m2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, list := Reconcile(tt.list, tt.in, DefaultDedupWindow)
			assert.Equal(t, tt.want, got)
			ids := make([]string, 0, len(list))
			for _, m := range list {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestReconcileNoticesBypassContentRules(t *testing.T) {
	join := models.Message{RoomID: "general", Sender: "bob", Content: "bob joined", Timestamp: t0, Kind: models.KindJoin}
	list := []models.Message{join}

	got, list := Reconcile(list, join, DefaultDedupWindow)
	assert.Equal(t, OutcomeAppended, got)
	assert.Len(t, list, 2)
}

func TestReconcileRejectsUnknownKind(t *testing.T) {
	in := msg("m1", "bob", "?", t0)
	in.Kind = models.Kind("sticker")

	got, list := Reconcile(nil, in, DefaultDedupWindow)
	assert.Equal(t, OutcomeRejected, got)
	assert.Empty(t, list)
}

func TestReconcileConfirmDoesNotAliasInput(t *testing.T) {
	list := []models.Message{msg("tmp_1", "alice", "hi", t0)}

	got, out := Reconcile(list, msg("m1", "alice", "hi", t0), DefaultDedupWindow)
	require.Equal(t, OutcomeConfirmed, got)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "tmp_1", list[0].ID)
}
