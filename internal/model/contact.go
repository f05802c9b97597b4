package model

import "time"

// Contact mirrors one address-book entry observed on the transport.
type Contact struct {
	SessionID    string    `db:"session_id" json:"sessionId"`
	ID           string    `db:"id" json:"id"`
	Name         *string   `db:"name" json:"name,omitempty"`
	Notify       *string   `db:"notify" json:"notify,omitempty"`
	VerifiedName *string   `db:"verified_name" json:"verifiedName,omitempty"`
	ImgURL       *string   `db:"img_url" json:"imgUrl,omitempty"`
	Status       *string   `db:"status" json:"status,omitempty"`
	RowID        int64     `db:"row_id" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertContactParams struct {
	SessionID    string
	ID           string
	Name         *string
	Notify       *string
	VerifiedName *string
	ImgURL       *string
	Status       *string
}
