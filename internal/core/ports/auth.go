package ports

import "github.com/melih/lighthouse-panel/internal/core/domain"

type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
	// Verify validates a token and returns the user id it was issued for.
	Verify(token string) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
