package auth

import (
	"database/sql"
	"errors"
	"time"
)

type Admin struct {
	ID               string         `db:"id"`
	Email            string         `db:"email"`
	PasswordHash     string         `db:"password_hash"`
	RefreshTokenHash sql.NullString `db:"refresh_token_hash"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// HasSession reports whether a refresh token is currently registered.
func (a Admin) HasSession() bool {
	return a.RefreshTokenHash.Valid && a.RefreshTokenHash.String != ""
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAdminNotFound       = errors.New("admin not found")
	ErrInvalidToken        = errors.New("invalid token")
)
