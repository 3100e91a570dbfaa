package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPCode is a single issued one-time code.
// More than one historical record may exist per phone, but at most one of them
// is unverified and actionable: issuing a new code deletes the unverified ones first.
type OTPCode struct {
	ID        uuid.UUID
	Phone     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Verified  bool
	Attempts  int
}
