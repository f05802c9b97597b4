package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nagi1/baileys-api/internal/model"
)

type CredentialRepository interface {
	Find(ctx context.Context, sessionID, recordID string) (*model.Credential, error)
	Upsert(ctx context.Context, sessionID, recordID string, value []byte) error
	Delete(ctx context.Context, sessionID, recordID string) error
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type credentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) Find(ctx context.Context, sessionID, recordID string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM credentials WHERE session_id = $1 AND record_id = $2
	`, sessionID, recordID)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) Upsert(ctx context.Context, sessionID, recordID string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (session_id, record_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, record_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, sessionID, recordID, value)
	return err
}

func (r *credentialRepo) Delete(ctx context.Context, sessionID, recordID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM credentials WHERE session_id = $1 AND record_id = $2
	`, sessionID, recordID)
	return err
}

func (r *credentialRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM credentials WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *credentialRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM credentials
		WHERE session_id NOT IN (SELECT DISTINCT session_id FROM session_configs)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
