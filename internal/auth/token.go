package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashMergeToken produces the bcrypt hash stored in MERGE_TOKEN_HASH.
// The plaintext token itself is never persisted.
func HashMergeToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", fmt.Errorf("merge token is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash merge token: %w", err)
	}
	return string(hash), nil
}

// VerifyMergeToken reports whether the presented token matches the configured
// hash. An empty token or an empty hash never verifies: consolidation stays
// locked until an operator provisions a token.
func VerifyMergeToken(token, hash string) bool {
	trimmedToken := strings.TrimSpace(token)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedToken == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedToken)) == nil
}
