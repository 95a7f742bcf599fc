package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)

	access, err := issuer.IssueAccessToken("admin-1")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken("admin-1")
	require.NoError(t, err)

	id, err := issuer.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", id)

	id, err = issuer.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", id)

	_, err = issuer.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensIssuedInSameSecondDiffer(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	first, err := issuer.IssueRefreshToken("admin-1")
	require.NoError(t, err)
	second, err := issuer.IssueRefreshToken("admin-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyFailsClosed(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)

	expiredIssuer := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.IssueAccessToken("admin-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{AdminID: "admin-1", Kind: accessKind})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{AdminID: "admin-1", Kind: accessKind}).
		SignedString([]byte("access-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Kind:             accessKind,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "abc.def.ghi"},
		{name: "expired", token: expired},
		{name: "alg none", token: unsigned},
		{name: "missing exp", token: noExpiry},
		{name: "missing admin id", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	token, err := issuer.IssueRefreshToken("admin-1")
	require.NoError(t, err)
	require.Greater(t, len(token), 72)

	hash, err := hashRefreshToken(token, 4)
	require.NoError(t, err)

	assert.True(t, refreshTokenMatches(hash, token))
	assert.False(t, refreshTokenMatches(hash, token[:len(token)-1]))
	assert.False(t, refreshTokenMatches(hash, token[:72]))
}
