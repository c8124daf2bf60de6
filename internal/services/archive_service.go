package services

import (
	"context"
	"fmt"

	"chatsync/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the slice of pgxpool.Pool the archive needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS chat_transcript (
	id         TEXT        NOT NULL,
	room_id    TEXT        NOT NULL,
	sender     TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	role       TEXT        NOT NULL DEFAULT '',
	sent_at    TIMESTAMPTZ NOT NULL,
	session_id TEXT        NOT NULL,
	PRIMARY KEY (room_id, id)
)`

// ArchiveService writes confirmed messages to Postgres. It never reads them back.
type ArchiveService struct {
	db        Execer
	sessionID string
}

func NewArchiveService(db Execer, sessionID string) *ArchiveService {
	return &ArchiveService{db: db, sessionID: sessionID}
}

func (s *ArchiveService) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, archiveSchema); err != nil {
		return fmt.Errorf("create transcript table: %w", err)
	}
	return nil
}

// SaveMessage inserts msg once; replays of the same id are ignored.
func (s *ArchiveService) SaveMessage(ctx context.Context, msg models.Message) error {
	if msg.Provisional() {
		return fmt.Errorf("refusing to archive provisional message %s", msg.ID)
	}
	query := `INSERT INTO chat_transcript (id, room_id, sender, content, kind, role, sent_at, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, id) DO NOTHING`
	_, err := s.db.Exec(ctx, query, msg.ID, msg.RoomID, msg.Sender, msg.Content, string(msg.Kind), string(msg.Role), msg.Timestamp, s.sessionID)
	if err != nil {
		return fmt.Errorf("archive message %s: %w", msg.ID, err)
	}
	return nil
}
