// Package crypto implements server-side password hashing.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the per-user salt size in bytes.
const SaltLen = 16

// Argon2id parameters. Memory-hard settings sized for a shared web server.
const (
	argonIters   uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewSalt generates a fresh per-user salt.
func NewSalt() ([]byte, error) { return RandBytes(SaltLen) }

// HashPassword derives the Argon2id hash of password under salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonIters, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword reports whether password hashes to expected in constant time.
func VerifyPassword(password, salt, expected []byte) bool {
	return subtle.ConstantTimeCompare(HashPassword(password, salt), expected) == 1
}
