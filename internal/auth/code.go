package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewVerifyCode returns a numeric code of exactly length digits, never
// starting with zero.
func NewVerifyCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("verify code length must be positive, got %d", length)
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate verify code: %w", err)
	}
	return n.Add(n, lo).String(), nil
}
