package security_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/geocoder89/taskhub/internal/security"
)

func TestBcryptHasher(t *testing.T) {
	h := security.NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret!", hash)

	require.True(t, h.Verify("s3cret!", hash))
	require.False(t, h.Verify("wrong", hash))
	require.False(t, h.Verify("s3cret!", "not-a-bcrypt-hash"))
}
