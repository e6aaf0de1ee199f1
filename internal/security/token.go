package security

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MatchToken reports whether a presented token matches a configured value.
// Configured values starting with a bcrypt prefix are treated as hashes;
// everything else is compared in constant time.
func MatchToken(configured, presented string) bool {
	configured = strings.TrimSpace(configured)
	presented = strings.TrimSpace(presented)
	if configured == "" || presented == "" {
		return false
	}
	if isBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// MatchAnyToken reports whether a presented token matches any configured value.
func MatchAnyToken(configured []string, presented string) bool {
	for _, candidate := range configured {
		if MatchToken(candidate, presented) {
			return true
		}
	}
	return false
}

// HashToken bcrypt-hashes a token for storage in configuration files.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isBcryptHash detects the standard bcrypt hash prefixes.
func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") ||
		strings.HasPrefix(value, "$2b$") ||
		strings.HasPrefix(value, "$2y$")
}
