package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.PasswordHasher = BcryptHasher{}

// BcryptHasher hashes with bcrypt; a zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
