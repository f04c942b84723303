package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("pw123!")
	require.NoError(t, err)

	assert.NotEqual(t, "pw123!", digest, "digest must never equal the plaintext")
	assert.True(t, hasher.Verify("pw123!", digest))
	assert.False(t, hasher.Verify("wrong", digest))
}

func TestHashIsSalted(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("pw123!")
	require.NoError(t, err)
	second, err := hasher.Hash("pw123!")
	require.NoError(t, err)

	// Fresh salt per call: same plaintext, different digests.
	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("pw123!", first))
	assert.True(t, hasher.Verify("pw123!", second))
}

func TestVerifyAgainstDifferentPassword(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("other_password")
	require.NoError(t, err)

	assert.False(t, hasher.Verify("password", digest))
}

func TestZeroCostRaisedToDefault(t *testing.T) {
	hasher := NewBcryptHasher(0)
	assert.Equal(t, bcrypt.DefaultCost, hasher.cost)
}

func TestVerifyMalformedDigest(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	assert.False(t, hasher.Verify("pw123!", "not-a-bcrypt-digest"))
}

func TestVerifyArgumentOrder(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("pw123!")
	require.NoError(t, err)

	// The arguments are positional: plaintext first, digest second. Feeding
	// the digest as plaintext must never verify.
	assert.True(t, hasher.Verify("pw123!", digest))
	assert.False(t, hasher.Verify(digest, "pw123!"))
}
