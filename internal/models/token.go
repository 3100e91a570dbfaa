package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionToken is the persisted side of an issued bearer token.
// A principal may hold several concurrently valid tokens (multi device).
type SessionToken struct {
	Token       string
	PrincipalID uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Revoked     bool
	Expired     bool // materialized by the sweeper, time based expiry is checked anyway
}

// BlacklistEntry invalidates a token outside the session token store.
// Append only, consulted on every validation.
type BlacklistEntry struct {
	Token         string
	BlacklistedAt time.Time
}

// IssuedToken is what the token engine hands back to the caller
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}
