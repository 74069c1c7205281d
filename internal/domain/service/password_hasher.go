// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	Check(password, hash string) bool
}

// TokenHasher hashes raw refresh tokens for storage. Unlike passwords,
// tokens can exceed bcrypt's input limit, so implementations pre-digest them.
type TokenHasher interface {
	Hash(token string) (string, error)
	Check(token, hash string) bool
}
