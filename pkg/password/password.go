// Package password provides one-way credential hashing behind a narrow
// interface so the algorithm can be swapped without touching callers.
//
// The default implementation is bcrypt: each call salts with fresh random
// bytes (hashing the same plaintext twice yields different digests), and
// verification recomputes using the salt embedded in the digest with a
// constant-time comparison.
//
// Plaintext passwords must never be logged or persisted; this package never
// retains them beyond the call.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies credentials.
type Hasher interface {
	// Hash produces a salted one-way digest of the plaintext.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches the digest.
	Verify(plaintext, digest string) bool
}

// BcryptHasher implements Hasher using bcrypt with a configurable cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost below bcrypt.MinCost is
// raised to bcrypt.DefaultCost so a zero-value config cannot weaken hashing.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash implements Hasher.Hash
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(digest), nil
}

// Verify implements Hasher.Verify. bcrypt's comparison is constant-time.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
