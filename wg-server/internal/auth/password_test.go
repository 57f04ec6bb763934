package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	iss, err := NewIssuer("0123456789abcdef")
	require.NoError(t, err)
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, ValidHash(hash))

	creds := Credentials{User: "admin", PasswordHash: hash}

	token, err := iss.Login(creds, "admin", "hunter22", time.Hour)
	require.NoError(t, err)
	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	_, err = iss.Login(creds, "admin", "wrong", time.Hour)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = iss.Login(creds, "root", "hunter22", time.Hour)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = iss.Login(Credentials{}, "", "", time.Hour)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidHash(t *testing.T) {
	assert.False(t, ValidHash("plain-text"))
	assert.False(t, ValidHash(""))
}
