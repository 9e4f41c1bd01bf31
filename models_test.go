package identity_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/goliatone/go-identity"
)

func TestUserHandle(t *testing.T) {
	user := &identity.User{Username: "peperone", Email: "pepe@example.com"}
	assert.Equal(t, "peperone", user.Handle())

	user.Username = ""
	assert.Equal(t, "pepe@example.com", user.Handle())
}

func TestUserSanitized(t *testing.T) {
	user := storedUser()
	require.NotEmpty(t, user.PasswordHash)

	clean := user.Sanitized()
	assert.Empty(t, clean.PasswordHash)
	assert.Equal(t, user.Email, clean.Email)
	assert.NotEmpty(t, user.PasswordHash, "sanitizing must not mutate the original")

	var nilUser *identity.User
	assert.Nil(t, nilUser.Sanitized())
}

func TestUserJSONNeverCarriesHash(t *testing.T) {
	raw, err := json.Marshal(storedUser())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.NotContains(t, decoded, "password_hash")
	assert.Equal(t, "pepe@example.com", decoded["email"])
	assert.Equal(t, "USER", decoded["role"])
}
