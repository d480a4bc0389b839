package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(7, "admin@example.com", "ADMIN", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "ADMIN", claims.Role)

	_, err = ValidateToken(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVendorTokenBinding(t *testing.T) {
	signer := NewVendorTokenSigner("vendor-secret", 24*time.Hour)

	token, id, err := signer.Sign(3, 42)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.VendorID)
	assert.Equal(t, int64(42), claims.RequestID)
	assert.Equal(t, id, claims.ID)

	_, _, err = signer.Sign(3, 43)
	require.NoError(t, err)
}

func TestVendorTokenRejections(t *testing.T) {
	signer := NewVendorTokenSigner("vendor-secret", 24*time.Hour)
	token, _, err := signer.Sign(1, 1)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := signer.WithClock(func() time.Time { return time.Now().Add(25 * time.Hour) })
		_, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewVendorTokenSigner("other", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := signer.Verify(token + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("admin token", func(t *testing.T) {
		admin, err := GenerateAccessToken(1, "a@b.c", "ADMIN", "vendor-secret", time.Hour)
		require.NoError(t, err)
		_, err = signer.Verify(admin)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "clothing-fashion", GenerateSlug("Clothing & Fashion"))
	assert.Equal(t, "electronique", GenerateSlug("  Électronique "))
	assert.Equal(t, "all", GenerateSlug("all"))
}

func TestPageParams(t *testing.T) {
	page, limit := PageParams("0", "500", 100, 20)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	page, limit = PageParams("3", "50", 100, 20)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, limit)
}
