package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal is an authenticated phone-only identity (seller or customer).
type Principal struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Phone       string
	DisplayName string
}
