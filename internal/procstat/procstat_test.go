//go:build linux

package procstat

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadSelf(t *testing.T) {
	s, err := Read(os.Getpid())
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.UTime+s.STime, uint64(0))
}

func TestPercentZeroElapsed(t *testing.T) {
	now := time.Now()
	prev := Sample{UTime: 10, STime: 5, At: now}
	cur := Sample{UTime: 20, STime: 10, At: now}
	require.Equal(t, float64(0), Percent(prev, cur, 100))
}

func TestPercentComputesUtilization(t *testing.T) {
	prev := Sample{UTime: 0, STime: 0, At: time.Unix(0, 0)}
	cur := Sample{UTime: 100, STime: 0, At: time.Unix(1, 0)}
	require.InDelta(t, 100.0, Percent(prev, cur, 100), 0.001)
}

func TestClockTicksHonorsEnv(t *testing.T) {
	t.Setenv("CLK_TCK", "250")
	require.Equal(t, 250, ClockTicks())
}
