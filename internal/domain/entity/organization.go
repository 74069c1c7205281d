package entity

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Every user belongs to exactly one.
type Organization struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
