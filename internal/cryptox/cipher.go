package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
)

const (
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	// MinPayloadSize is the smallest well-formed encrypted payload:
	// IV plus authentication tag around an empty plaintext.
	MinPayloadSize = IVSize + TagSize

	// ivSalt is the fixed salt for IV derivation, shared with the client.
	ivSalt = "clipshare-iv-v1"

	// looksEncryptedMin is the length threshold of the legacy heuristic.
	looksEncryptedMin = 20
)

// Error definitions
var (
	ErrURLSecretRequired     = Error("url secret is required for non-password clips")
	ErrPrimarySecretRequired = Error("primary secret is required for iv derivation")
	ErrIVSaltRequired        = Error("salt is required for iv derivation")
	ErrPayloadTooShort       = Error("encrypted payload is too short")

	// ErrDecryptionFailed deliberately does not distinguish a wrong secret
	// from corrupted ciphertext; callers must not leak which one occurred.
	ErrDecryptionFailed = Error("decryption failed: content may be corrupted or the password is incorrect")
)

type Error string

func (e Error) Error() string {
	return string(e)
}

// Encrypt seals plaintext under the secrets per the derivation rules and
// returns a single buffer laid out as IV ‖ ciphertext ‖ tag. No key material
// ever appears in the output.
func Encrypt(plaintext []byte, password, urlSecret string) ([]byte, error) {
	key, err := DeriveKey(password, urlSecret)
	if err != nil {
		return nil, err
	}

	iv, err := deriveContentIV(password, urlSecret)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, IVSize, IVSize+len(plaintext)+TagSize)
	copy(out, iv)
	return gcm.Seal(out, iv, plaintext, nil), nil
}

// Decrypt reverses Encrypt. The payload must be at least MinPayloadSize bytes;
// the first 12 bytes are taken as the IV and the remainder as ciphertext plus
// tag. Any authentication or shape failure surfaces as the same generic error.
func Decrypt(payload []byte, password, urlSecret string) ([]byte, error) {
	if len(payload) < MinPayloadSize {
		return nil, ErrPayloadTooShort
	}

	key, err := DeriveKey(password, urlSecret)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := payload[:IVSize]
	plaintext, err := gcm.Open(nil, iv, payload[IVSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// LooksEncrypted reports whether content is plausibly an encrypted payload.
// Anything of at least 20 bytes passes. This is a backward-compatibility
// heuristic for legacy unencrypted clips, not a security boundary.
func LooksEncrypted(content []byte) bool {
	return len(content) >= looksEncryptedMin
}

// LooksEncryptedString is LooksEncrypted for base64-transported content.
// Non-base64 input is never treated as encrypted.
func LooksEncryptedString(content string) bool {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return false
	}
	return LooksEncrypted(decoded)
}

// deriveContentIV picks the IV secrets the same way the client does: the
// password is primary when present, otherwise the URL secret, with the other
// one as secondary.
func deriveContentIV(password, urlSecret string) ([]byte, error) {
	if password != "" {
		return DeriveIV(password, urlSecret, ivSalt)
	}
	return DeriveIV(urlSecret, "", ivSalt)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
