package auth

import (
	"crypto/subtle"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tasktrack/internal/models"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// NormalizeUsername returns canonical lowercase username and validates allowed characters.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(strings.ToLower(raw))
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLength {
		return "", fmt.Errorf("username too long")
	}
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("invalid username")
	}
	return username, nil
}

// NormalizeEmail lowercases and validates a single bare address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email: %s", raw)
	}
	return email, nil
}

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// HashPassword hashes one plaintext password for persistent storage.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword verifies plaintext password against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}

// NewUser validates the account fields and hashes password.
func NewUser(username, email, password string, roles []string, now time.Time) (*models.User, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	addr, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if !models.IsValidRole(role) {
			return nil, fmt.Errorf("invalid role: %s", role)
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     name,
		Email:        addr,
		PasswordHash: hash,
		Roles:        append([]string(nil), roles...),
		CreatedAt:    now.UTC(),
	}, nil
}

// TokenMatches compares a presented bearer token with the configured one in
// constant time. An empty expected token never matches.
func TokenMatches(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
