// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"meter/config"
	"meter/internal/domain/service"
	"meter/internal/errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a password hasher using the configured bcrypt cost.
func NewBcryptHasher(cfg *config.Config) service.PasswordHasher {
	return &bcryptHasher{cost: bcryptCost(cfg)}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash password")
	}

	return string(bytes), nil
}

// Check compares a plaintext password with a bcrypt hash.
func (h *bcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// tokenHasher bcrypt-hashes the hex SHA-256 digest of a token. The digest keeps
// the input at 64 bytes, under bcrypt's 72 byte limit, without truncating
// long JWTs that share a common prefix.
type tokenHasher struct {
	cost int
}

// NewTokenHasher returns the refresh token hasher.
func NewTokenHasher(cfg *config.Config) service.TokenHasher {
	return &tokenHasher{cost: bcryptCost(cfg)}
}

func (h *tokenHasher) Hash(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(digest(token), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash token")
	}

	return string(bytes), nil
}

func (h *tokenHasher) Check(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(token)) == nil
}

func digest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])

	return out
}

func bcryptCost(cfg *config.Config) int {
	if cfg == nil || cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}

	return cfg.Auth.BcryptCost
}
