package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/loftdocs/loft/pkg/models"
)

const (
	// TokenPrefix identifies API tokens issued by this service.
	TokenPrefix = "loft_"
	// tokenBytes is the random payload length (256 bits).
	tokenBytes = 32
)

// GenerateToken creates a new API token. The plaintext is returned once;
// only the SHA256 hash is ever stored.
func GenerateToken() (token, tokenHash string, err error) {
	randomBytes := make([]byte, tokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token = TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, HashToken(token), nil
}

// HashToken computes the storage hash of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateTokenFormat rejects tokens that cannot possibly be ours before
// any database lookup.
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}

// TokenStore resolves a token hash to its user.
type TokenStore interface {
	UserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
}

// TokenProvider authenticates bearer tokens against a TokenStore. A
// malformed or unknown token yields no user rather than an error, so the
// guard layer produces the 401.
type TokenProvider struct {
	store TokenStore
}

// NewTokenProvider creates a token-backed session provider.
func NewTokenProvider(store TokenStore) *TokenProvider {
	return &TokenProvider{store: store}
}

// Authenticate resolves the bearer token to a user. Returns (nil, nil) for
// missing or malformed tokens.
func (p *TokenProvider) Authenticate(ctx context.Context, bearer string) (*models.User, error) {
	if bearer == "" {
		return nil, nil
	}
	if err := ValidateTokenFormat(bearer); err != nil {
		return nil, nil
	}
	user, err := p.store.UserByTokenHash(ctx, HashToken(bearer))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	return user, nil
}
