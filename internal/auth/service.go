package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates a user account with a hashed password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login validates email/password credentials and issues a token pair.
// Unknown accounts, wrong passwords and inactive accounts all surface the
// same invalid-credentials failure so login does not leak account state.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, shared.ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, TokenPair{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, shared.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, TokenPair{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, shared.ErrInvalidCredentials)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The account is
// re-read so deactivation and role changes take effect immediately.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}

	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: account no longer exists", httpx.ErrUnauthorized)
	}
	if !user.IsActive {
		return TokenPair{}, fmt.Errorf("%w: account deactivated", httpx.ErrUnauthorized)
	}
	return s.tokens.IssuePair(user)
}

// Identify resolves an access token to the current account.
func (s *Service) Identify(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	user, err := s.repo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: account no longer exists", httpx.ErrUnauthorized)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("%w: current password does not match", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// SetActive toggles an account's active flag.
func (s *Service) SetActive(ctx context.Context, userID int64, active bool) error {
	return s.repo.SetActive(ctx, userID, active)
}

// GetUser loads a single account.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
