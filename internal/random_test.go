package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOTPShapeAndBounds(t *testing.T) {
	for _, digits := range []int{4, 6, 8, 10} {
		code, err := NewOTP(digits)
		require.NoError(t, err)
		require.Len(t, code, digits)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "non-digit %q in %q", r, code)
		}
	}

	_, err := NewOTP(3)
	require.Error(t, err)
	_, err = NewOTP(11)
	require.Error(t, err)
}

func TestNewRecoveryCodeFormat(t *testing.T) {
	code, err := NewRecoveryCode(10)
	require.NoError(t, err)

	// 10 characters plus one separator after the first group of five.
	require.Len(t, code, 11)
	parts := strings.Split(code, "-")
	require.Len(t, parts, 2)
	for _, part := range parts {
		require.Len(t, part, 5)
		for _, r := range part {
			require.Contains(t, recoveryAlphabet, string(r))
		}
	}

	_, err = NewRecoveryCode(7)
	require.Error(t, err)
	_, err = NewRecoveryCode(33)
	require.Error(t, err)
}

func TestNewRecoveryCodesDistinct(t *testing.T) {
	codes, err := NewRecoveryCodes(10, 10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}
