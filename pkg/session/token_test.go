package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/models"
)

type fakeTokenStore struct {
	users map[string]*models.User
	err   error
}

func (f *fakeTokenStore) UserByTokenHash(_ context.Context, tokenHash string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[tokenHash], nil
}

func TestGenerateToken(t *testing.T) {
	token, tokenHash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Equal(t, HashToken(token), tokenHash)
	assert.NoError(t, ValidateTokenFormat(token))

	other, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("loft_abc"), HashToken("loft_abc"))
	assert.NotEqual(t, HashToken("loft_abc"), HashToken("loft_abd"))
	assert.Len(t, HashToken("loft_abc"), 64)
}

func TestValidateTokenFormat(t *testing.T) {
	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"valid", "loft_dGVzdA", true},
		{"wrong prefix", "ghp_dGVzdA", false},
		{"prefix only", "loft_", false},
		{"bad base64", "loft_!!!", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTokenFormat(tc.token)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTokenProviderAuthenticate(t *testing.T) {
	token, tokenHash, err := GenerateToken()
	require.NoError(t, err)

	store := &fakeTokenStore{users: map[string]*models.User{
		tokenHash: {ID: 7, Email: "u@example.com", IsActive: true},
	}}
	provider := NewTokenProvider(store)

	user, err := provider.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
}

func TestTokenProviderUnknownTokenYieldsNoUser(t *testing.T) {
	provider := NewTokenProvider(&fakeTokenStore{users: map[string]*models.User{}})

	user, err := provider.Authenticate(context.Background(), "loft_dGVzdA")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestTokenProviderMalformedTokenYieldsNoUser(t *testing.T) {
	// Malformed bearers never hit the store.
	provider := NewTokenProvider(&fakeTokenStore{err: errors.New("must not be called")})

	for _, bearer := range []string{"", "Basic abc", "loft_"} {
		user, err := provider.Authenticate(context.Background(), bearer)
		assert.NoError(t, err)
		assert.Nil(t, user)
	}
}

func TestTokenProviderStoreErrorSurfaces(t *testing.T) {
	provider := NewTokenProvider(&fakeTokenStore{err: errors.New("connection reset")})

	_, err := provider.Authenticate(context.Background(), "loft_dGVzdA")
	assert.Error(t, err)
}
