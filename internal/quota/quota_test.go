package quota

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGiBToBytes(t *testing.T) {
	require.Equal(t, int64(1073741824), GiBToBytes(1))
	require.Equal(t, int64(10737418240), GiBToBytes(10))
	require.Equal(t, int64(536870912), GiBToBytes(0.5))
	require.Equal(t, int64(107374182), GiBToBytes(0.1))
}

func TestQuotaRoundTrip(t *testing.T) {
	// Converting bytes to GiB and back must reproduce the original value
	// within one byte.
	values := []int64{
		1,
		1023,
		1 << 30,
		5 * (1 << 30),
		10737418240,
		123456789012,
	}
	for _, v := range values {
		back := GiBToBytes(BytesToGiB(v))
		require.LessOrEqual(t, math.Abs(float64(back-v)), 1.0, "value %d", v)
	}
}

func TestUsagePercent(t *testing.T) {
	require.InDelta(t, 50.0, UsagePercent(512, 1024), 0.001)
	require.Equal(t, 100.0, UsagePercent(2048, 1024), "capped at 100")
	require.Equal(t, 0.0, UsagePercent(0, 1024))

	// Zero quota must not divide by zero; mirrors the display falling back
	// to a 1-byte denominator.
	require.Equal(t, 100.0, UsagePercent(10, 0))
}
