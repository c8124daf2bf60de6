package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestArchiveSaveMessage(t *testing.T) {
	db := &fakeExecer{}
	svc := NewArchiveService(db, "sess-1")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := svc.SaveMessage(context.Background(), models.Message{ID: "m1", RoomID: "general", Sender: "bob", Content: "hi", Kind: models.KindMessage, Timestamp: at})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "ON CONFLICT (room_id, id) DO NOTHING")
	assert.Equal(t, []any{"m1", "general", "bob", "hi", "message", "", at, "sess-1"}, db.calls[0].args)
}

func TestArchiveRejectsProvisional(t *testing.T) {
	db := &fakeExecer{}
	err := NewArchiveService(db, "s").SaveMessage(context.Background(), models.Message{ID: "tmp_1"})
	assert.Error(t, err)
	assert.Empty(t, db.calls)
}

func TestArchiveWrapsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewArchiveService(&fakeExecer{err: boom}, "s")

	assert.ErrorIs(t, svc.EnsureSchema(context.Background()), boom)
	assert.ErrorIs(t, svc.SaveMessage(context.Background(), models.Message{ID: "m1"}), boom)
}
