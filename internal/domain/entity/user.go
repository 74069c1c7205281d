// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is a member of an organization who can sign in with email and password.
type User struct {
	ID             uuid.UUID // Global unique identifier of the user.
	OrganizationID uuid.UUID // Tenant the user belongs to.
	Email          string    // Login identifier, always stored lower-cased.
	PasswordHash   string    // bcrypt hash of the password.
	Role           Role      // Role within the organization.
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
