package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyType names the encoding of a stored public key.
type KeyType string

const (
	KeyTypeECPEM  KeyType = "EC_PEM"
	KeyTypeRSAPEM KeyType = "RSA_PEM"
)

// Account identifiers are chosen by the client at registration time,
// not assigned by the server.
type Account struct {
	UUID        uuid.UUID  `json:"uuid"`
	Name        string     `json:"name"`
	Locked      *string    `json:"locked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSeen    time.Time  `json:"last_seen"`
	DeleteAfter *time.Time `json:"delete_after,omitempty"`
}

type AccountKey struct {
	AccountID uuid.UUID `json:"account_id"`
	AuthKey   []byte    `json:"-"`
	KeyType   KeyType   `json:"key_type"`
}

type AccountLogin struct {
	AccountID    uuid.UUID `json:"account_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
}
