package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Validate("", "short1"), ErrTooShort)
	require.ErrorIs(t, Validate("", "12345678"), ErrNoLetter)
	require.ErrorIs(t, Validate("", "abcdefgh"), ErrNoDigit)
	require.ErrorIs(t, Validate("Sacco2024", "Sacco2024"), ErrSameAsBefore)
	require.NoError(t, Validate("Sacco2024", "Harambee2025"))
}

func TestFingerprint(t *testing.T) {
	require.Empty(t, Fingerprint(""))
	require.Len(t, Fingerprint("tok"), 12)
	require.Equal(t, Fingerprint("tok"), Fingerprint("tok"))
	require.NotEqual(t, Fingerprint("tok"), Fingerprint("tok2"))
}
