package clip

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// QuickShareIDLength keeps quick-share links short enough to type.
	QuickShareIDLength = 4

	// StandardIDLength gives normal clips an unguessable identifier.
	StandardIDLength = 10
)

// NewClipID generates a random uppercase-alphanumeric clip identifier,
// 4 characters for quick-share clips and 10 otherwise. Uniqueness is
// ultimately enforced by the store's primary-key constraint.
func NewClipID(quickShare bool) (string, error) {
	length := StandardIDLength
	if quickShare {
		length = QuickShareIDLength
	}

	id := make([]byte, length)
	max := big.NewInt(int64(len(idCharset)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate clip id: %w", err)
		}
		id[i] = idCharset[n.Int64()]
	}

	return string(id), nil
}
