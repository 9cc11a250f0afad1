package jwtutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateToken("secret", 60, userID, "a@b.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", 60, uuid.New(), "a@b.com")
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", -1, uuid.New(), "a@b.com")
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not-a-token")
	assert.Error(t, err)
}
