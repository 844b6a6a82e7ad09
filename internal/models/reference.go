package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns n characters drawn uniformly from A-Z and 0-9.
func RandomCode(n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(referenceAlphabet)))
	for i := range out {
		index, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("models: random code: %w", err)
		}
		out[i] = referenceAlphabet[index.Int64()]
	}
	return string(out), nil
}

// NewReference formats <prefix>-<year>-<six random characters>, the shape
// used for certificate and ticket numbers.
func NewReference(prefix string, year int) (string, error) {
	code, err := RandomCode(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", prefix, year, code), nil
}
