package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateOK(t *testing.T) {
	c := Config{PID: 123, Threshold: DefaultThreshold}
	require.NoError(t, c.Validate())
}

func TestValidateNoTarget(t *testing.T) {
	c := Config{Threshold: DefaultThreshold}
	require.ErrorIs(t, c.Validate(), errNoTarget)
}

func TestValidateMutuallyExclusive(t *testing.T) {
	c := Config{PID: 1, ReplayPath: "trace.json", Threshold: DefaultThreshold}
	require.ErrorIs(t, c.Validate(), errMutuallyExclusive)
}

func TestValidateBadThreshold(t *testing.T) {
	c := Config{PID: 1, Threshold: 0}
	require.ErrorIs(t, c.Validate(), errBadThreshold)
}

func TestValidateBadWindow(t *testing.T) {
	c := Config{PID: 1, Threshold: DefaultThreshold, RollingWindow: -time.Second}
	require.ErrorIs(t, c.Validate(), errBadWindow)
}

func TestValidateHeadlessNeedsExport(t *testing.T) {
	c := Config{PID: 1, Threshold: DefaultThreshold, Headless: true}
	require.ErrorIs(t, c.Validate(), errHeadlessNeedsExport)
}

func TestValidateReplayAlone(t *testing.T) {
	c := Config{ReplayPath: "trace.json", Threshold: DefaultThreshold}
	require.NoError(t, c.Validate())
}
