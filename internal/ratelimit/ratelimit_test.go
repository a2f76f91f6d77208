package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		DrawBucketSize:   2,
		DrawRefillRate:   1,
		CursorBucketSize: 3,
		CursorRefillRate: 1,
	}
}

func TestAllowWithinBucketCapacity(t *testing.T) {
	l := New(testConfig())
	require.True(t, l.Allow(ClassDraw))
	require.True(t, l.Allow(ClassDraw))
}

func TestAllowDropsBeyondCapacity(t *testing.T) {
	l := New(testConfig())
	require.True(t, l.Allow(ClassDraw))
	require.True(t, l.Allow(ClassDraw))
	require.False(t, l.Allow(ClassDraw))
}

func TestClassesAreIndependent(t *testing.T) {
	l := New(testConfig())
	require.True(t, l.Allow(ClassDraw))
	require.True(t, l.Allow(ClassDraw))
	require.False(t, l.Allow(ClassDraw))

	require.True(t, l.Allow(ClassCursor))
	require.True(t, l.Allow(ClassCursor))
	require.True(t, l.Allow(ClassCursor))
	require.False(t, l.Allow(ClassCursor))
}
