// Package cryptox implements the client-compatible encryption scheme:
// PBKDF2-based key/IV derivation and AES-256-GCM content sealing. The browser
// performs the real encryption; this server-side copy exists for verification
// tooling and must stay byte-compatible with the client (same salts, iteration
// counts and concatenation order).
package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keySalt is the fixed application salt shared with the browser client.
	// Changing it breaks decryption of every existing clip.
	keySalt = "clipshare-zero-knowledge-v1"

	// KeyIterations is the PBKDF2 iteration count for content keys.
	KeyIterations = 100000

	// IVIterations is intentionally lower than KeyIterations: IV derivation
	// is not the secrecy boundary, determinism is what matters here.
	IVIterations = 50000

	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// IVSize is the GCM nonce length in bytes.
	IVSize = 12
)

// DeriveKey derives the AES-256 content key from the clip secrets. Exactly one
// of two modes applies:
//
//   - password mode: password is non-empty; the combined secret is
//     "urlSecret:password" when a URL secret is also present, else the
//     password alone.
//   - secret-only mode: no password; the URL secret is required.
//
// Empty string means absent. Both absent is an error, never a silent fallback.
func DeriveKey(password, urlSecret string) ([]byte, error) {
	var combined string
	switch {
	case password != "":
		if urlSecret != "" {
			combined = urlSecret + ":" + password
		} else {
			combined = password
		}
	case urlSecret != "":
		combined = urlSecret
	default:
		return nil, ErrURLSecretRequired
	}

	return pbkdf2.Key([]byte(combined), []byte(keySalt), KeyIterations, KeySize, sha256.New), nil
}

// DeriveIV derives the deterministic 12-byte GCM nonce. The combined secret is
// "secondary:primary" when a secondary secret is present, else the primary
// alone. Deriving the IV from the secrets (rather than randomly) keeps the
// scheme reproducible on both sides; safety relies on every clip carrying a
// fresh random secret.
func DeriveIV(primary, secondary, salt string) ([]byte, error) {
	if primary == "" {
		return nil, ErrPrimarySecretRequired
	}
	if salt == "" {
		return nil, ErrIVSaltRequired
	}

	combined := primary
	if secondary != "" {
		combined = secondary + ":" + primary
	}

	return pbkdf2.Key([]byte(combined), []byte(salt), IVIterations, IVSize, sha256.New), nil
}
