package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	ps := NewPasswordService()

	assert.ErrorIs(t, ps.ValidatePassword(""), ErrPasswordEmpty)
	assert.ErrorIs(t, ps.ValidatePassword("12345"), ErrPasswordTooShort)
	assert.ErrorIs(t, ps.ValidatePassword(strings.Repeat("x", 73)), ErrPasswordTooLong)

	assert.NoError(t, ps.ValidatePassword("pass123"))
	assert.NoError(t, ps.ValidatePassword(strings.Repeat("x", 72)))
}

func TestHashAndComparePassword(t *testing.T) {
	ps := NewPasswordService()

	hash, err := ps.HashPassword("pass123")
	require.NoError(t, err)
	assert.NotEqual(t, "pass123", hash)

	assert.True(t, ps.ComparePassword("pass123", hash))
	assert.False(t, ps.ComparePassword("wrong", hash))
	assert.False(t, ps.ComparePassword("pass123", "not-a-bcrypt-hash"))
}

func TestHashPassword_RejectsInvalid(t *testing.T) {
	ps := NewPasswordService()

	_, err := ps.HashPassword("")
	assert.ErrorIs(t, err, ErrPasswordEmpty)

	_, err = ps.HashPassword("123")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
