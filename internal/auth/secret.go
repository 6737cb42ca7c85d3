package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSecretTooShort = errors.New("client secret must be at least 16 characters")
)

const (
	bcryptCost      = 12
	minSecretLength = 16
)

// HashClientSecret hashes a client secret using bcrypt
func HashClientSecret(secret string) (string, error) {
	if len(secret) < minSecretLength {
		return "", ErrSecretTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckClientSecret compares a client secret with its hash
func CheckClientSecret(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
