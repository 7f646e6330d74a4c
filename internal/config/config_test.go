package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	d := Defaults()
	require.Equal(t, NoNIC, d.NIC)
	require.Equal(t, RunIndefinitely, d.Iterations)
	require.Equal(t, uint64(DefaultSendSleepUS*1000), d.PeriodNS)
	require.Equal(t, DefaultSendPriority, d.SendPriority)
	require.Equal(t, DefaultReceivePriority, d.ReceivePriority)
	require.Equal(t, uint64(0), d.BucketWidthNS)
}

func TestValidateRejectsNoConfigAndOnlyConfigTogether(t *testing.T) {
	c := Defaults()
	c.NoConfig = true
	c.OnlyConfig = true

	require.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateRejectsZeroPeriod(t *testing.T) {
	c := Defaults()
	c.PeriodNS = 0
	require.Error(t, c.Validate())
}

func TestValidateCPUBoundsRejectsOutOfRangeSendCPU(t *testing.T) {
	c := Defaults()
	c.SendCPU = 8
	c.ReceiveCPU = 0

	require.Error(t, c.ValidateCPUBounds(4))
}

func TestValidateCPUBoundsAcceptsInRangeCPUs(t *testing.T) {
	c := Defaults()
	c.SendCPU = 1
	c.ReceiveCPU = 2

	require.NoError(t, c.ValidateCPUBounds(4))
}

func TestHasNICReflectsSentinel(t *testing.T) {
	c := Defaults()
	require.False(t, c.HasNIC())

	c.NIC = "eth0"
	require.True(t, c.HasNIC())
}
