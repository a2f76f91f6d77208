package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("UNSET_TEST_KEY", "")
	require.Equal(t, "fallback", getEnv("UNSET_TEST_KEY", "fallback"))
}

func TestGetIntParsesValidValue(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "42")
	require.Equal(t, 42, getInt("TEST_INT_KEY", 0))
}

func TestGetIntFallsBackOnUnparseable(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "not-a-number")
	require.Equal(t, 7, getInt("TEST_INT_KEY", 7))
}

func TestGetDurationTreatsMsSuffixAsMilliseconds(t *testing.T) {
	t.Setenv("CURSOR_BATCH_MS", "25")
	require.Equal(t, 25*time.Millisecond, getDuration("CURSOR_BATCH_MS", 50*time.Millisecond))
}

func TestGetDurationTreatsBareNumberAsSeconds(t *testing.T) {
	t.Setenv("READ_TIMEOUT", "5")
	require.Equal(t, 5*time.Second, getDuration("READ_TIMEOUT", time.Second))
}

func TestGetDurationParsesSuffixedValue(t *testing.T) {
	t.Setenv("IDLE_TIMEOUT", "2m")
	require.Equal(t, 2*time.Minute, getDuration("IDLE_TIMEOUT", time.Second))
}
