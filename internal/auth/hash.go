package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Refresh tokens exceed bcrypt's 72 byte input limit, so the SHA-256 digest
// of the token is what gets salted and stored.
func hashRefreshToken(token string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(refreshDigest(token), normalizeCost(cost))
	if err != nil {
		return "", fmt.Errorf("hash refresh token: %w", err)
	}
	return string(hash), nil
}

func refreshTokenMatches(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), refreshDigest(token)) == nil
}

func refreshDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(hex.EncodeToString(sum[:]))
}

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
