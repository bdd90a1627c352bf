package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testUser() *User {
	return &User{ID: 7, Email: "cashier@example.com", Role: RoleCashier, IsActive: true}
}

func TestIssueAndVerifyPair(t *testing.T) {
	m := NewTokenManager("test-secret", "meridian-test", time.Minute, time.Hour)

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "7", claims.Subject)
	require.Equal(t, "cashier@example.com", claims.Email)
	require.Equal(t, RoleCashier, claims.Role)

	refreshClaims, err := m.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "7", refreshClaims.Subject)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := NewTokenManager("test-secret", "meridian-test", time.Minute, time.Hour)

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)

	_, err = m.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenType)

	_, err = m.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenType)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", "meridian-test", time.Minute, time.Hour)
	m.accessTTL = -time.Minute

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)

	_, err = m.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", "meridian-test", time.Minute, time.Hour)
	verifier := NewTokenManager("secret-b", "meridian-test", time.Minute, time.Hour)

	pair, err := issuer.IssuePair(testUser())
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", "meridian-test", time.Minute, time.Hour)

	_, err := m.VerifyAccess("not.a.token")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
