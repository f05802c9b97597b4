package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nagi1/baileys-api/internal/model"
)

type ContactRepository interface {
	FindByID(ctx context.Context, sessionID, id string) (*model.Contact, error)
	Upsert(ctx context.Context, params model.UpsertContactParams) error
	InsertIgnore(ctx context.Context, params model.UpsertContactParams) (bool, error)
	UpdateFields(ctx context.Context, params model.UpsertContactParams) error
	DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error)
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Contact, error)
}

type contactRepo struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts WHERE session_id = $1 AND id = $2
	`, sessionID, id)
	return HandleNotFound(&contact, err)
}

// Upsert writes a contact. Name and notify columns keep their stored
// value when the incoming one is NULL or empty: protocol updates that
// omit identity labels must not erase previously learned ones.
func (r *contactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts
			(session_id, id, name, notify, verified_name, img_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
			notify = COALESCE(NULLIF(EXCLUDED.notify, ''), contacts.notify),
			verified_name = COALESCE(EXCLUDED.verified_name, contacts.verified_name),
			img_url = COALESCE(EXCLUDED.img_url, contacts.img_url),
			status = COALESCE(EXCLUDED.status, contacts.status),
			updated_at = NOW()
	`, params.SessionID, params.ID, params.Name, params.Notify,
		params.VerifiedName, params.ImgURL, params.Status)
	return err
}

func (r *contactRepo) InsertIgnore(ctx context.Context, params model.UpsertContactParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts
			(session_id, id, name, notify, verified_name, img_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, id) DO NOTHING
	`, params.SessionID, params.ID, params.Name, params.Notify,
		params.VerifiedName, params.ImgURL, params.Status)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *contactRepo) UpdateFields(ctx context.Context, params model.UpsertContactParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET
			name = COALESCE(NULLIF($3, ''), name),
			notify = COALESCE(NULLIF($4, ''), notify),
			verified_name = COALESCE($5, verified_name),
			img_url = COALESCE($6, img_url),
			status = COALESCE($7, status),
			updated_at = NOW()
		WHERE session_id = $1 AND id = $2
	`, params.SessionID, params.ID, params.Name, params.Notify,
		params.VerifiedName, params.ImgURL, params.Status)
	return err
}

func (r *contactRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE session_id = $1 AND id = ANY($2)
	`, sessionID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *contactRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *contactRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts
		WHERE session_id NOT IN (SELECT DISTINCT session_id FROM session_configs)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *contactRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Contact, error) {
	var contacts []model.Contact
	err := r.db.SelectContext(ctx, &contacts, `
		SELECT * FROM contacts
		WHERE session_id = $1 AND row_id > $2
		ORDER BY row_id ASC
		LIMIT $3
	`, sessionID, cursor, limit)
	return contacts, err
}
