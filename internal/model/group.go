package model

import "time"

// Group mirrors one group-chat metadata record observed on the transport.
type Group struct {
	SessionID        string    `db:"session_id" json:"sessionId"`
	ID               string    `db:"id" json:"id"`
	Subject          *string   `db:"subject" json:"subject,omitempty"`
	Owner            *string   `db:"owner" json:"owner,omitempty"`
	Description      *string   `db:"description" json:"description,omitempty"`
	ParticipantCount *int      `db:"participant_count" json:"participantCount,omitempty"`
	Creation         *int64    `db:"creation" json:"creation,omitempty"`
	RowID            int64     `db:"row_id" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertGroupParams struct {
	SessionID        string
	ID               string
	Subject          *string
	Owner            *string
	Description      *string
	ParticipantCount *int
	Creation         *int64
}
