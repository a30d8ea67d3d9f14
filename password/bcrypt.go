package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPassBytes = 8
	maxPassBytes = 72 // bcrypt input limit
)

// ErrPasswordLength is returned for passwords outside bcrypt's usable range.
var ErrPasswordLength = errors.New("password length out of range")

// Hasher hashes and verifies bcrypt digests at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher builds a hasher. Costs below the bcrypt default are raised to it;
// zero selects the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a digest from the plaintext password.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < minPassBytes || len(plain) > maxPassBytes {
		return "", ErrPasswordLength
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches the stored digest. Errors other than
// a mismatch (malformed digest) surface as (false, err).
func (h *Hasher) Verify(plain, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// HashCode derives a digest from a recovery code. Codes are short by design,
// so the account-password minimum does not apply.
func (h *Hasher) HashCode(code string) (string, error) {
	if code == "" || len(code) > maxPassBytes {
		return "", ErrPasswordLength
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}
