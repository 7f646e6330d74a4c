package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/rsi-robotics/rtcat-eval/internal/config"
)

// resetViper gives each test its own clean global viper state, since
// AddFlags binds into the package-level viper instance.
func resetViper() {
	viper.Reset()
}

func TestNewRootCmdRegistersEveryDocumentedFlag(t *testing.T) {
	resetViper()
	root := NewRootCmd()

	for _, name := range []string{"nic", "iterations", "send-sleep", "send-priority", "receive-priority",
		"send-cpu", "receive-cpu", "verbose", "no-config", "only-config", "bucket-width"} {
		require.NotNil(t, root.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestFlagsToConfigAppliesDocumentedDefaults(t *testing.T) {
	resetViper()
	flags := NewFlags()
	root := &cobra.Command{Use: "rtcat"}
	flags.AddFlags(root)
	require.NoError(t, root.ParseFlags(nil))

	cfg, err := flags.ToConfig()
	require.NoError(t, err)

	require.Equal(t, config.NoNIC, cfg.NIC)
	require.Equal(t, config.RunIndefinitely, cfg.Iterations)
	require.Equal(t, uint64(config.DefaultSendSleepUS*1000), cfg.PeriodNS)
	require.Equal(t, config.DefaultSendPriority, cfg.SendPriority)
	require.Equal(t, config.DefaultReceivePriority, cfg.ReceivePriority)
	require.False(t, cfg.Verbose)
	require.False(t, cfg.NoConfig)
	require.False(t, cfg.OnlyConfig)
}

func TestFlagsToConfigRejectsNoConfigAndOnlyConfigTogether(t *testing.T) {
	resetViper()
	flags := NewFlags()
	root := &cobra.Command{Use: "rtcat"}
	flags.AddFlags(root)

	require.NoError(t, root.ParseFlags([]string{"--no-config", "--only-config"}))

	_, err := flags.ToConfig()
	require.Error(t, err)
}

func TestFlagsToConfigConvertsMicrosecondsToNanoseconds(t *testing.T) {
	resetViper()
	flags := NewFlags()
	root := &cobra.Command{Use: "rtcat"}
	flags.AddFlags(root)

	require.NoError(t, root.ParseFlags([]string{"--send-sleep", "500", "--bucket-width", "50"}))

	cfg, err := flags.ToConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), cfg.PeriodNS)
	require.Equal(t, uint64(50_000), cfg.BucketWidthNS)
}

func TestFlagsToConfigLeavesBucketWidthAutoWhenUnset(t *testing.T) {
	resetViper()
	flags := NewFlags()
	root := &cobra.Command{Use: "rtcat"}
	flags.AddFlags(root)

	require.NoError(t, root.ParseFlags(nil))

	cfg, err := flags.ToConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(0), cfg.BucketWidthNS)
}

func TestFlagsToConfigReadsNicAndVerbose(t *testing.T) {
	resetViper()
	flags := NewFlags()
	root := &cobra.Command{Use: "rtcat"}
	flags.AddFlags(root)

	require.NoError(t, root.ParseFlags([]string{"--nic", "eth0", "--verbose"}))

	cfg, err := flags.ToConfig()
	require.NoError(t, err)
	require.Equal(t, "eth0", cfg.NIC)
	require.True(t, cfg.Verbose)
	require.True(t, cfg.HasNIC())
}
