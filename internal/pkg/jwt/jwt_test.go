package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)
	return token
}

func TestInspect(t *testing.T) {
	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	token := issue(t, jwt.MapClaims{"userId": 42, "role": "manager", "exp": exp.Unix()})

	claims, err := Inspect(token)
	require.NoError(t, err)
	require.Equal(t, "manager", claims.Role)
	require.Equal(t, float64(42), claims.UserID)

	got, ok := ExpiresAt(token)
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	require.False(t, Expired(token, exp.Add(-time.Minute)))
	require.True(t, Expired(token, exp))
}

func TestInspectMalformed(t *testing.T) {
	_, err := Inspect("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenMalformed)

	_, ok := ExpiresAt("not-a-jwt")
	require.False(t, ok)
	require.False(t, Expired("not-a-jwt", time.Now()))
}
