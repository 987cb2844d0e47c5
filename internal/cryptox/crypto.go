// Package cryptox hashes and verifies account passwords for the remote
// document server using Argon2id.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 32
	keySize  = 32
)

// DeriveKey stretches password with salt using Argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

// HashPassword generates a fresh random salt and returns it together with the
// derived verifier. Both must be stored to check the password later.
func HashPassword(password []byte) (salt []byte, verifier []byte) {
	salt = common.GenerateRandByteArray(saltSize)
	return salt, DeriveKey(password, salt)
}

// MatchVerifier reports whether candidate equals the stored verifier. The
// comparison runs in constant time.
func MatchVerifier(verifier, candidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
