// Package access implements access-code hashing and the authorization
// decision for clip retrieval. Access codes cross the network only as
// 128-hex-char PBKDF2-SHA512 hashes; the server never derives a hash from
// caller-supplied plaintext during validation.
package access

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// HashIterations is intentionally higher than the content-key derivation:
	// this hash alone gates access and must resist offline brute force at rest.
	HashIterations = 600000

	// HashSize is the raw digest length in bytes; hex-encoded it is 128 chars.
	HashSize = 64
)

var hashedCodePattern = regexp.MustCompile(`^[a-f0-9]{128}$`)

var (
	ErrSaltRequired = Error("access code salt is required")
	ErrEmptyCode    = Error("access code must not be empty")
)

type Error string

func (e Error) Error() string {
	return string(e)
}

// TokenService hashes access codes and validates pre-hashed candidates.
type TokenService struct {
	salt   []byte
	logger *logrus.Logger
}

// NewTokenService fails without a configured salt; every hash in the store
// depends on it and a silently empty salt would be unrecoverable.
func NewTokenService(salt string, logger *logrus.Logger) (*TokenService, error) {
	if salt == "" {
		return nil, ErrSaltRequired
	}
	return &TokenService{salt: []byte(salt), logger: logger}, nil
}

// GenerateHash produces the 128-hex-char hash of a code. Only ever called for
// server-originated codes (quick-share secrets, migration tooling); codes from
// network peers arrive already hashed.
func (s *TokenService) GenerateHash(code string) (string, error) {
	if code == "" {
		return "", ErrEmptyCode
	}
	digest := pbkdf2.Key([]byte(code), s.salt, HashIterations, HashSize, sha512.New)
	return hex.EncodeToString(digest), nil
}

// IsAlreadyHashed reports whether candidate has the shape of a generated hash.
func (s *TokenService) IsAlreadyHashed(candidate string) bool {
	return len(candidate) == HashSize*2 && hashedCodePattern.MatchString(strings.ToLower(candidate))
}

// ValidateAccessCode compares a pre-hashed candidate against the stored hash
// in constant time. Candidates that are not already in hashed form are
// rejected outright: running PBKDF2 over peer-supplied plaintext here would
// break the zero-knowledge contract.
func (s *TokenService) ValidateAccessCode(candidate, storedHash string) bool {
	if !s.IsAlreadyHashed(candidate) {
		return false
	}
	if len(candidate) != len(storedHash) {
		return false
	}

	a := []byte(strings.ToLower(candidate))
	b := []byte(strings.ToLower(storedHash))
	return subtle.ConstantTimeCompare(a, b) == 1
}
