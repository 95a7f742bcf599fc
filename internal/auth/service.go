package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (Admin, error)
	GetByID(ctx context.Context, id string) (Admin, error)
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error)
	UpsertAdmin(ctx context.Context, email, passwordHash string) (Admin, bool, error)
	CreateAdmin(ctx context.Context, email, passwordHash string) (Admin, bool, error)
}

type Service struct {
	repo       AdminStore
	tokens     *TokenIssuer
	bcryptCost int
	dummyHash  string
}

func NewService(repo AdminStore, tokens *TokenIssuer, bcryptCost int) (*Service, error) {
	// Compared against on unknown emails so both rejection paths pay for a
	// bcrypt comparison.
	dummy, err := HashPassword("portfolio-unknown-admin", bcryptCost)
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}, nil
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			passwordMatches(s.dummyHash, password)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !passwordMatches(admin.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(admin.ID)
	if err != nil {
		return TokenPair{}, err
	}

	hash, err := hashRefreshToken(pair.RefreshToken, s.bcryptCost)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.repo.SetRefreshTokenHash(ctx, admin.ID, &hash); err != nil {
		return TokenPair{}, err
	}

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The stored hash is only
// replaced if it is still the one the presented token matched, so of two
// concurrent refreshes with the same token at most one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrUnauthorized
	}

	adminID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	admin, err := s.repo.GetByID(ctx, adminID)
	if err != nil {
		return TokenPair{}, err
	}

	if !admin.HasSession() || !refreshTokenMatches(admin.RefreshTokenHash.String, refreshToken) {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(admin.ID)
	if err != nil {
		return TokenPair{}, err
	}

	hash, err := hashRefreshToken(pair.RefreshToken, s.bcryptCost)
	if err != nil {
		return TokenPair{}, err
	}

	swapped, err := s.repo.SwapRefreshTokenHash(ctx, admin.ID, admin.RefreshTokenHash.String, hash)
	if err != nil {
		return TokenPair{}, err
	}
	if !swapped {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return pair, nil
}

func (s *Service) Logout(ctx context.Context, adminID string) error {
	if adminID == "" {
		return ErrUnauthorized
	}
	return s.repo.SetRefreshTokenHash(ctx, adminID, nil)
}

func (s *Service) Admin(ctx context.Context, adminID string) (Admin, error) {
	return s.repo.GetByID(ctx, adminID)
}

// ProvisionAdmin creates the admin or resets its password.
func (s *Service) ProvisionAdmin(ctx context.Context, email, password string) (Admin, bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Admin{}, false, fmt.Errorf("email and password are required")
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return Admin{}, false, err
	}

	return s.repo.UpsertAdmin(ctx, email, hash)
}

// BootstrapFromEnv seeds the admin account on first boot. An existing account
// keeps its password.
func (s *Service) BootstrapFromEnv(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}

	_, created, err := s.repo.CreateAdmin(ctx, email, hash)
	return created, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
