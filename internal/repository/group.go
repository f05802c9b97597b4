package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nagi1/baileys-api/internal/model"
)

type GroupRepository interface {
	FindByID(ctx context.Context, sessionID, id string) (*model.Group, error)
	Upsert(ctx context.Context, params model.UpsertGroupParams) error
	UpdateFields(ctx context.Context, params model.UpsertGroupParams) error
	DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error)
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Group, error)
}

type groupRepo struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Group, error) {
	var group model.Group
	err := r.db.GetContext(ctx, &group, `
		SELECT * FROM groups WHERE session_id = $1 AND id = $2
	`, sessionID, id)
	return HandleNotFound(&group, err)
}

func (r *groupRepo) Upsert(ctx context.Context, params model.UpsertGroupParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups
			(session_id, id, subject, owner, description, participant_count, creation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, id) DO UPDATE SET
			subject = COALESCE(EXCLUDED.subject, groups.subject),
			owner = COALESCE(EXCLUDED.owner, groups.owner),
			description = COALESCE(EXCLUDED.description, groups.description),
			participant_count = COALESCE(EXCLUDED.participant_count, groups.participant_count),
			creation = COALESCE(EXCLUDED.creation, groups.creation),
			updated_at = NOW()
	`, params.SessionID, params.ID, params.Subject, params.Owner,
		params.Description, params.ParticipantCount, params.Creation)
	return err
}

func (r *groupRepo) UpdateFields(ctx context.Context, params model.UpsertGroupParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE groups SET
			subject = COALESCE($3, subject),
			owner = COALESCE($4, owner),
			description = COALESCE($5, description),
			participant_count = COALESCE($6, participant_count),
			creation = COALESCE($7, creation),
			updated_at = NOW()
		WHERE session_id = $1 AND id = $2
	`, params.SessionID, params.ID, params.Subject, params.Owner,
		params.Description, params.ParticipantCount, params.Creation)
	return err
}

func (r *groupRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM groups WHERE session_id = $1 AND id = ANY($2)
	`, sessionID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *groupRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM groups WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *groupRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM groups
		WHERE session_id NOT IN (SELECT DISTINCT session_id FROM session_configs)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *groupRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.SelectContext(ctx, &groups, `
		SELECT * FROM groups
		WHERE session_id = $1 AND row_id > $2
		ORDER BY row_id ASC
		LIMIT $3
	`, sessionID, cursor, limit)
	return groups, err
}
