package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Generate numeric code of the given length from crypto/rand.
// Each digit is drawn independently so the code keeps leading zeros.
func generateCode(length int) (string, error) {
	var b strings.Builder
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("error while generating otp code. Err: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
