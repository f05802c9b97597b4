package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nagi1/baileys-api/internal/model"
)

type ChatRepository interface {
	FindByID(ctx context.Context, sessionID, id string) (*model.Chat, error)
	Exists(ctx context.Context, sessionID, id string) (bool, error)
	Upsert(ctx context.Context, params model.UpsertChatParams) error
	// InsertIgnore inserts the chat only if the (session_id, id) key is
	// unseen; existing rows are left untouched. Reports whether a row
	// was inserted.
	InsertIgnore(ctx context.Context, params model.UpsertChatParams) (bool, error)
	// UpdateFields patches the non-counter columns of an existing row.
	// Nil fields are preserved.
	UpdateFields(ctx context.Context, params model.UpsertChatParams) error
	IncrementUnread(ctx context.Context, sessionID, id string, by int) error
	SetUnread(ctx context.Context, sessionID, id string, value int) error
	DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error)
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Chat, error)
}

type chatRepo struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `
		SELECT * FROM chats WHERE session_id = $1 AND id = $2
	`, sessionID, id)
	return HandleNotFound(&chat, err)
}

func (r *chatRepo) Exists(ctx context.Context, sessionID, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM chats WHERE session_id = $1 AND id = $2)
	`, sessionID, id)
	return exists, err
}

func (r *chatRepo) Upsert(ctx context.Context, params model.UpsertChatParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats
			(session_id, id, name, unread_count, conversation_timestamp,
			 archived, pinned, mute_end_time, read_only)
		VALUES ($1, $2, $3, COALESCE($4, 0), $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, chats.name),
			unread_count = COALESCE($4, chats.unread_count),
			conversation_timestamp = COALESCE(EXCLUDED.conversation_timestamp, chats.conversation_timestamp),
			archived = COALESCE(EXCLUDED.archived, chats.archived),
			pinned = COALESCE(EXCLUDED.pinned, chats.pinned),
			mute_end_time = COALESCE(EXCLUDED.mute_end_time, chats.mute_end_time),
			read_only = COALESCE(EXCLUDED.read_only, chats.read_only),
			updated_at = NOW()
	`, params.SessionID, params.ID, params.Name, params.UnreadCount,
		params.ConversationTimestamp, params.Archived, params.Pinned,
		params.MuteEndTime, params.ReadOnly)
	return err
}

func (r *chatRepo) InsertIgnore(ctx context.Context, params model.UpsertChatParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO chats
			(session_id, id, name, unread_count, conversation_timestamp,
			 archived, pinned, mute_end_time, read_only)
		VALUES ($1, $2, $3, COALESCE($4, 0), $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, id) DO NOTHING
	`, params.SessionID, params.ID, params.Name, params.UnreadCount,
		params.ConversationTimestamp, params.Archived, params.Pinned,
		params.MuteEndTime, params.ReadOnly)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *chatRepo) UpdateFields(ctx context.Context, params model.UpsertChatParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET
			name = COALESCE($3, name),
			conversation_timestamp = COALESCE($4, conversation_timestamp),
			archived = COALESCE($5, archived),
			pinned = COALESCE($6, pinned),
			mute_end_time = COALESCE($7, mute_end_time),
			read_only = COALESCE($8, read_only),
			updated_at = NOW()
		WHERE session_id = $1 AND id = $2
	`, params.SessionID, params.ID, params.Name, params.ConversationTimestamp,
		params.Archived, params.Pinned, params.MuteEndTime, params.ReadOnly)
	return err
}

func (r *chatRepo) IncrementUnread(ctx context.Context, sessionID, id string, by int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET
			unread_count = unread_count + $3,
			updated_at = NOW()
		WHERE session_id = $1 AND id = $2
	`, sessionID, id, by)
	return err
}

func (r *chatRepo) SetUnread(ctx context.Context, sessionID, id string, value int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET
			unread_count = $3,
			updated_at = NOW()
		WHERE session_id = $1 AND id = $2
	`, sessionID, id, value)
	return err
}

func (r *chatRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chats WHERE session_id = $1 AND id = ANY($2)
	`, sessionID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *chatRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chats WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *chatRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chats
		WHERE session_id NOT IN (SELECT DISTINCT session_id FROM session_configs)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *chatRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.SelectContext(ctx, &chats, `
		SELECT * FROM chats
		WHERE session_id = $1 AND row_id > $2
		ORDER BY row_id ASC
		LIMIT $3
	`, sessionID, cursor, limit)
	return chats, err
}
