package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nagi1/baileys-api/internal/model"
)

type MessageRepository interface {
	FindByKey(ctx context.Context, sessionID, chatID, messageID string) (*model.Message, error)
	Upsert(ctx context.Context, params model.UpsertMessageParams) error
	InsertIgnore(ctx context.Context, params model.UpsertMessageParams) (bool, error)
	SetReceipts(ctx context.Context, sessionID, chatID, messageID string, receipts model.ReceiptList) error
	SetReactions(ctx context.Context, sessionID, chatID, messageID string, reactions model.ReactionList) error
	DeleteByKey(ctx context.Context, sessionID, chatID, messageID string) (int64, error)
	DeleteByChat(ctx context.Context, sessionID, chatID string) (int64, error)
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	List(ctx context.Context, sessionID, chatID string, cursor int64, limit int) ([]model.Message, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByKey(ctx context.Context, sessionID, chatID, messageID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM messages
		WHERE session_id = $1 AND chat_id = $2 AND message_id = $3
	`, sessionID, chatID, messageID)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) Upsert(ctx context.Context, params model.UpsertMessageParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(session_id, chat_id, message_id, from_me, participant,
			 push_name, message_timestamp, status, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, chat_id, message_id) DO UPDATE SET
			from_me = EXCLUDED.from_me,
			participant = COALESCE(EXCLUDED.participant, messages.participant),
			push_name = COALESCE(EXCLUDED.push_name, messages.push_name),
			message_timestamp = COALESCE(EXCLUDED.message_timestamp, messages.message_timestamp),
			status = COALESCE(EXCLUDED.status, messages.status),
			content = COALESCE(EXCLUDED.content, messages.content),
			updated_at = NOW()
	`, params.SessionID, params.ChatID, params.MessageID, params.FromMe,
		params.Participant, params.PushName, params.MessageTimestamp,
		params.Status, params.Content)
	return err
}

func (r *messageRepo) InsertIgnore(ctx context.Context, params model.UpsertMessageParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(session_id, chat_id, message_id, from_me, participant,
			 push_name, message_timestamp, status, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, chat_id, message_id) DO NOTHING
	`, params.SessionID, params.ChatID, params.MessageID, params.FromMe,
		params.Participant, params.PushName, params.MessageTimestamp,
		params.Status, params.Content)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *messageRepo) SetReceipts(ctx context.Context, sessionID, chatID, messageID string, receipts model.ReceiptList) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			receipts = $4,
			updated_at = NOW()
		WHERE session_id = $1 AND chat_id = $2 AND message_id = $3
	`, sessionID, chatID, messageID, receipts)
	return err
}

func (r *messageRepo) SetReactions(ctx context.Context, sessionID, chatID, messageID string, reactions model.ReactionList) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			reactions = $4,
			updated_at = NOW()
		WHERE session_id = $1 AND chat_id = $2 AND message_id = $3
	`, sessionID, chatID, messageID, reactions)
	return err
}

func (r *messageRepo) DeleteByKey(ctx context.Context, sessionID, chatID, messageID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE session_id = $1 AND chat_id = $2 AND message_id = $3
	`, sessionID, chatID, messageID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) DeleteByChat(ctx context.Context, sessionID, chatID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id = $1 AND chat_id = $2
	`, sessionID, chatID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE session_id NOT IN (SELECT DISTINCT session_id FROM session_configs)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) List(ctx context.Context, sessionID, chatID string, cursor int64, limit int) ([]model.Message, error) {
	var msgs []model.Message
	if chatID != "" {
		err := r.db.SelectContext(ctx, &msgs, `
			SELECT * FROM messages
			WHERE session_id = $1 AND chat_id = $2 AND row_id > $3
			ORDER BY row_id ASC
			LIMIT $4
		`, sessionID, chatID, cursor, limit)
		return msgs, err
	}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE session_id = $1 AND row_id > $2
		ORDER BY row_id ASC
		LIMIT $3
	`, sessionID, cursor, limit)
	return msgs, err
}
