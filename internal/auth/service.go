package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// HashCredential derives the opaque credential reference stored for a
// user from a plaintext password.
func HashCredential(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash credential: %w", err)
	}
	return string(hash), nil
}

// UserDirectory is the slice of the entity store the login flow needs.
type UserDirectory interface {
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
}

// Service wraps login and logout. It stands in for the external identity
// store: credentials are verified against the opaque credential reference.
type Service struct {
	users  UserDirectory
	tokens *TokenStore
}

// NewService constructs a Service.
func NewService(users UserDirectory, tokens *TokenStore) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login validates credentials and issues a bearer token. Failures are
// indistinguishable to the caller: always ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (string, Principal, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", Principal{}, fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)
		}
		return "", Principal{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.CredentialRef), []byte(password)) != nil {
		return "", Principal{}, fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)
	}
	principal := Principal{UserID: user.ID, Username: user.Username}
	token, err := s.tokens.Issue(ctx, principal)
	if err != nil {
		return "", Principal{}, err
	}
	return token, principal, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
