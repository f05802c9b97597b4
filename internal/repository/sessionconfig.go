package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/nagi1/baileys-api/internal/model"
)

// SessionConfigRepository persists the options a session is recreated
// from after a process restart.
type SessionConfigRepository interface {
	Find(ctx context.Context, sessionID, configID string) (*model.SessionConfig, error)
	Upsert(ctx context.Context, sessionID, configID string, data json.RawMessage) error
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	ListAll(ctx context.Context) ([]model.SessionConfig, error)
}

type sessionConfigRepo struct {
	db *sqlx.DB
}

func NewSessionConfigRepository(db *sqlx.DB) SessionConfigRepository {
	return &sessionConfigRepo{db: db}
}

func (r *sessionConfigRepo) Find(ctx context.Context, sessionID, configID string) (*model.SessionConfig, error) {
	var cfg model.SessionConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT * FROM session_configs WHERE session_id = $1 AND config_id = $2
	`, sessionID, configID)
	return HandleNotFound(&cfg, err)
}

func (r *sessionConfigRepo) Upsert(ctx context.Context, sessionID, configID string, data json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_configs (session_id, config_id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, config_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, sessionID, configID, []byte(data))
	return err
}

func (r *sessionConfigRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_configs WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionConfigRepo) ListAll(ctx context.Context) ([]model.SessionConfig, error) {
	var configs []model.SessionConfig
	err := r.db.SelectContext(ctx, &configs, `
		SELECT * FROM session_configs ORDER BY created_at ASC
	`)
	return configs, err
}
