package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewNumericCode returns a uniformly random string of length decimal digits,
// zero-padded, covering the whole code space (e.g. 000000-999999 for 6).
func NewNumericCode(length int) (string, error) {
	if length < 1 || length > 18 {
		return "", fmt.Errorf("invalid code length %d", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
