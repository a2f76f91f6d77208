package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePrefersVerifiedOverClientID(t *testing.T) {
	userID, isAnon := Resolve("verified-user-1", "client-supplied")
	require.Equal(t, "verified-user-1", userID)
	require.False(t, isAnon)
}

func TestResolveFallsBackToClientID(t *testing.T) {
	userID, isAnon := Resolve("", "client-supplied")
	require.Equal(t, "client-supplied", userID)
	require.True(t, isAnon)
}

func TestResolveSynthesizesUUIDWhenNeitherGiven(t *testing.T) {
	userID, isAnon := Resolve("", "")
	require.NotEmpty(t, userID)
	require.True(t, isAnon)

	other, _ := Resolve("", "")
	require.NotEqual(t, userID, other)
}

func TestDisplayNamePrefersProvided(t *testing.T) {
	require.Equal(t, "Alice", DisplayName("user-1", "Alice", false))
}

func TestDisplayNameFallsBackToUserIDWhenNotAnonymous(t *testing.T) {
	require.Equal(t, "user-1", DisplayName("user-1", "", false))
}

func TestDisplayNameDeterministicForAnonymous(t *testing.T) {
	name1 := DisplayName("anon-user-7", "", true)
	name2 := DisplayName("anon-user-7", "", true)
	require.Equal(t, name1, name2)
	require.Contains(t, name1, "Anonymous ")
}

func TestAvatarColorDeterministic(t *testing.T) {
	c1 := AvatarColor("user-42")
	c2 := AvatarColor("user-42")
	require.Equal(t, c1, c2)
	require.Len(t, c1, 7) // "#RRGGBB"
}
