// Package entity contains the core business objects of the project.
package entity

import (
	"slices"
	"strings"
)

// Role is a user's role inside their organization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// CanSyncCatalog reports whether the role may trigger a billing catalog sync.
func (r Role) CanSyncCatalog() bool {
	return CatalogSyncRoles.Contains(r)
}

// Roles is a slice of Role for convenience.
type Roles []Role

// CatalogSyncRoles lists the roles allowed to synchronize the billing catalog.
var CatalogSyncRoles = Roles{RoleOwner, RoleAdmin}

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ParseRole converts a string into a Role, accepting any letter case.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))

	return role, role.IsValid()
}
