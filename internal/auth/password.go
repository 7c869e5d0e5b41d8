package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost 10 keeps login latency acceptable while remaining expensive to
// brute force.
const bcryptCost = 10

// HashPassword derives the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword checks a plaintext password against a stored bcrypt hash.
// A nil return means they match.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
