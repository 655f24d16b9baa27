package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is an opaque handle bound to exactly one account. The token
// itself carries no claims; everything lives server-side.
type Session struct {
	ID        string    `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
