package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

type stubDirectory struct {
	users map[string]store.User
	err   error
}

func (d stubDirectory) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if d.err != nil {
		return store.User{}, d.err
	}
	u, ok := d.users[username]
	if !ok {
		return store.User{}, fmt.Errorf("user %q: %w", username, httpx.ErrNotFound)
	}
	return u, nil
}

func TestLoginSuccess(t *testing.T) {
	tokens, _ := newTestTokenStore(t)
	hash, err := HashCredential("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc := NewService(stubDirectory{users: map[string]store.User{
		"alice": {ID: 7, Username: "alice", CredentialRef: hash},
	}}, tokens)

	token, principal, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if principal.UserID != 7 {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	resolved, err := tokens.Lookup(context.Background(), token)
	if err != nil {
		t.Fatalf("lookup issued token: %v", err)
	}
	if resolved.Username != "alice" {
		t.Fatalf("unexpected resolved principal: %+v", resolved)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	tokens, _ := newTestTokenStore(t)
	hash, _ := HashCredential("s3cret-pass")
	svc := NewService(stubDirectory{users: map[string]store.User{
		"alice": {ID: 7, Username: "alice", CredentialRef: hash},
	}}, tokens)

	_, _, err := svc.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	tokens, _ := newTestTokenStore(t)
	svc := NewService(stubDirectory{users: map[string]store.User{}}, tokens)

	// Unknown user and bad password are indistinguishable.
	_, _, err := svc.Login(context.Background(), "mallory", "whatever")
	if !errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	tokens, _ := newTestTokenStore(t)
	hash, _ := HashCredential("s3cret-pass")
	svc := NewService(stubDirectory{users: map[string]store.User{
		"alice": {ID: 7, Username: "alice", CredentialRef: hash},
	}}, tokens)

	token, _, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := tokens.Lookup(context.Background(), token); !errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("expected token revoked, got %v", err)
	}
}
