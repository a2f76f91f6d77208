package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsOwnSignedToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Sign("user-1", time.Minute)
	require.NoError(t, err)

	userID, ok := v.Verify(token)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Sign("user-1", -time.Minute)
	require.NoError(t, err)

	_, ok := v.Verify(token)
	require.False(t, ok)
}

func TestVerifyRejectsTokenFromDifferentSecret(t *testing.T) {
	v1 := NewVerifier("secret-one")
	v2 := NewVerifier("secret-two")

	token, err := v1.Sign("user-1", time.Minute)
	require.NoError(t, err)

	_, ok := v2.Verify(token)
	require.False(t, ok)
}

func TestVerifyDisabledWhenNoSecretConfigured(t *testing.T) {
	v := NewVerifier("")
	_, ok := v.Verify("anything")
	require.False(t, ok)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := NewVerifier("test-secret")
	_, ok := v.Verify("")
	require.False(t, ok)
}
