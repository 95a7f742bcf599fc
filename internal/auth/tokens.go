package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenKind string

const (
	accessKind  tokenKind = "access"
	refreshKind tokenKind = "refresh"
)

type tokenClaims struct {
	AdminID string    `json:"adminId"`
	Kind    tokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the access and refresh JWTs. Each kind has
// its own HS256 secret, so a token of one kind never verifies as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenIssuer) IssueAccessToken(adminID string) (string, error) {
	return t.issue(adminID, accessKind, t.accessSecret, t.accessTTL)
}

func (t *TokenIssuer) IssueRefreshToken(adminID string) (string, error) {
	return t.issue(adminID, refreshKind, t.refreshSecret, t.refreshTTL)
}

func (t *TokenIssuer) IssuePair(adminID string) (TokenPair, error) {
	access, err := t.IssueAccessToken(adminID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(adminID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken returns the admin id carried by a valid access token.
// Every failure collapses to ErrInvalidToken.
func (t *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	return t.verify(token, accessKind, t.accessSecret)
}

func (t *TokenIssuer) VerifyRefreshToken(token string) (string, error) {
	return t.verify(token, refreshKind, t.refreshSecret)
}

func (t *TokenIssuer) issue(adminID string, kind tokenKind, secret []byte, ttl time.Duration) (string, error) {
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := t.now().UTC()
	claims := tokenClaims{
		AdminID: adminID,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (t *TokenIssuer) verify(token string, kind tokenKind, secret []byte) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Kind != kind || claims.AdminID == "" {
		return "", ErrInvalidToken
	}

	return claims.AdminID, nil
}
