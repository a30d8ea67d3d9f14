package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// recoveryAlphabet avoids ambiguous characters (0/O, 1/I/L) so codes survive
// being read aloud or written down.
const recoveryAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewOTP returns a random numeric code of the given length. Each digit is
// drawn independently so the code is uniform over its range.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// NewRecoveryCode returns one recovery code of the given length, formatted
// in groups of five (e.g. "A7KQ2-M9XWD").
func NewRecoveryCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid recovery code length")
	}
	size := big.NewInt(int64(len(recoveryAlphabet)))
	var b strings.Builder
	for i := 0; i < length; i++ {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewRecoveryCodes returns count distinct recovery codes.
func NewRecoveryCodes(count, length int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := NewRecoveryCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
