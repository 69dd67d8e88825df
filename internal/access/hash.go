package access

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a plaintext password into its stored form. The unsalted
// sha256 scheme is the wire- and store-compatible default; swapping in a
// stronger hasher changes stored hashes but not the protocol.
type Hasher interface {
	Hash(password string) string
	Verify(password, hash string) bool
}

// Sha256Hasher is the compatibility scheme: an unsalted hex digest. Equal
// passwords always produce equal hashes, which is a known weakness kept for
// compatibility with existing user tables.
type Sha256Hasher struct{}

func (Sha256Hasher) Hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (h Sha256Hasher) Verify(password, hash string) bool {
	return h.Hash(password) == hash
}

// BcryptHasher is the salted alternative. Existing sha256 hashes stop
// validating once a deployment switches to it.
type BcryptHasher struct{}

func (BcryptHasher) Hash(password string) string {
	// password max size is 72 bytes because of bcrypt limit
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hashed)
}

func (BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
