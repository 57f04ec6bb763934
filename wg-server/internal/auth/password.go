package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is the single admin account allowed to log in. An empty
// PasswordHash disables login; tokens can still be issued offline.
type Credentials struct {
	User         string
	PasswordHash string
}

func (c Credentials) Enabled() bool {
	return c.User != "" && c.PasswordHash != ""
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ValidHash reports whether hash is a bcrypt hash.
func ValidHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}

// Login checks user and pass against creds and issues a token for user.
func (i *Issuer) Login(creds Credentials, user, pass string, ttl time.Duration) (string, error) {
	if !creds.Enabled() {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(creds.User)) != 1 {
		return "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(pass)); err != nil {
		return "", ErrUnauthorized
	}
	return i.Issue(user, ttl)
}
