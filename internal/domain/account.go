package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for account operations.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account roles. Players request registrations; admins review them.
const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// Account is an authenticated principal: a player or a reviewing admin.
// swagger:model Account
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountRepository defines storage operations for accounts.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
}

// PasswordHasher handles salt generation, hashing, and verification.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated account.
type TokenIssuer interface {
	Issue(accountID, role string, expiry time.Duration) (string, error)
}

// TokenVerifier validates a token and returns the account id and role.
type TokenVerifier interface {
	Verify(token string) (accountID, role string, err error)
}

// AuthService authenticates accounts and issues tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (token string, account *Account, err error)
}
