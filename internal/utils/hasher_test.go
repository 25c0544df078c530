package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("password1")
	require.NoError(t, err)
	assert.NotEqual(t, "password1", digest)

	assert.True(t, hasher.Verify("password1", digest))
	assert.False(t, hasher.Verify("password2", digest))
	assert.False(t, hasher.Verify("password1", "not-a-digest"))
	assert.False(t, hasher.Verify("password1", ""))
}

func TestBcryptHasher_Salted(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	a, err := hasher.Hash("password1")
	require.NoError(t, err)
	b, err := hasher.Hash("password1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, hasher.Verify("password1", a))
	assert.True(t, hasher.Verify("password1", b))
}

func TestBcryptHasher_TooLongSecret(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	_, err := hasher.Hash(string(long))
	assert.ErrorIs(t, err, ErrHashingPasswordFailed)
}
