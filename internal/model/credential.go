package model

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// CredRecordID is the record id of the primary credential blob.
// All other records use "{category}-{itemId}" ids issued by the
// transport's key store.
const CredRecordID = "creds"

// Credential is one durable credential record. Value is an opaque,
// binary-safe blob owned by the transport layer.
type Credential struct {
	SessionID string    `db:"session_id" json:"sessionId"`
	RecordID  string    `db:"record_id" json:"recordId"`
	Value     []byte    `db:"value" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// KeyPair holds one asymmetric key pair. []byte fields round-trip
// through JSON as base64, keeping raw key bytes lossless.
type KeyPair struct {
	Public  []byte `json:"public"`
	Private []byte `json:"private"`
}

// UserIdentity is the authenticated account reported by the transport.
type UserIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AuthCreds is the deserialized form of the "creds" record. The gateway
// only inspects Registered and Me; everything else is carried for the
// transport layer.
type AuthCreds struct {
	NoiseKey          KeyPair       `json:"noiseKey"`
	SignedIdentityKey KeyPair       `json:"signedIdentityKey"`
	AdvSecretKey      []byte        `json:"advSecretKey"`
	RegistrationID    uint32        `json:"registrationId"`
	Registered        bool          `json:"registered"`
	Me                *UserIdentity `json:"me,omitempty"`
}

// NewAuthCreds generates fresh key material for a session that has no
// persisted credentials yet.
func NewAuthCreds() (*AuthCreds, error) {
	noise, err := randomKeyPair()
	if err != nil {
		return nil, err
	}
	identity, err := randomKeyPair()
	if err != nil {
		return nil, err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	var regID [4]byte
	if _, err := rand.Read(regID[:]); err != nil {
		return nil, err
	}

	return &AuthCreds{
		NoiseKey:          noise,
		SignedIdentityKey: identity,
		AdvSecretKey:      secret,
		RegistrationID:    binary.BigEndian.Uint32(regID[:]) & 0x3fff,
	}, nil
}

func randomKeyPair() (KeyPair, error) {
	pub := make([]byte, 32)
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return KeyPair{}, err
	}
	if _, err := rand.Read(pub); err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}
