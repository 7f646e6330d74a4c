package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditorRunPopulatesHostBannerAndGroups(t *testing.T) {
	ds := NewMemoryDataSource()
	ds.Files["uname.nodename"] = "rtbox"
	ds.Files["uname.sysname"] = "Linux"
	ds.Files["uname.release"] = "6.6.1-rt10"
	ds.Files["uname.version"] = "#1 SMP PREEMPT RT"
	ds.Files["uname.machine"] = "x86_64"
	ds.Files["/proc/sys/kernel/timer_migration"] = "0\n"
	ds.Files["/proc/swaps"] = "Filename\tType\tSize\tUsed\tPriority\n"
	ds.Files["/sys/devices/system/clocksource/clocksource0/current_clocksource"] = "tsc\n"

	a := New(ds)
	snap := a.Run(2, "")

	require.Equal(t, "rtbox", snap.Hostname)
	require.Equal(t, 2, snap.CPU)
	require.Nil(t, snap.NIC)
	require.Len(t, snap.System, len(systemChecks))
	require.Len(t, snap.Core, len(coreChecks))
	require.Empty(t, snap.NICChecks)
}

func TestAuditorRunSkipsNicGroupWithoutNicArgument(t *testing.T) {
	ds := NewMemoryDataSource()
	a := New(ds)

	snap := a.Run(2, "")
	require.Nil(t, snap.NIC)
	require.Empty(t, snap.NICChecks)
}

func TestAuditorRunShortCircuitsNicChecksWhenNicAbsent(t *testing.T) {
	ds := NewMemoryDataSource()
	a := New(ds)

	snap := a.Run(2, "eth0")
	require.NotNil(t, snap.NIC)
	require.Equal(t, "eth0", *snap.NIC)

	// only the presence check runs; the rest are skipped entirely.
	require.Len(t, snap.NICChecks, 1)
	require.Equal(t, string(Unknown), snap.NICChecks[0].Status)
}

func TestAuditorRunEvaluatesNicChecksWhenNicPresent(t *testing.T) {
	ds := NewMemoryDataSource()
	ds.Files["/sys/class/net/eth0/operstate"] = "up\n"
	a := New(ds)

	snap := a.Run(2, "eth0")
	require.Len(t, snap.NICChecks, 1+len(nicChecks))

	foundLinkUp := false
	for _, outcome := range snap.NICChecks {
		if outcome.Name == "NIC link is UP" {
			foundLinkUp = true
			require.Equal(t, string(Pass), outcome.Status)
		}
	}
	require.True(t, foundLinkUp)
}

func TestAuditorCheckNamesCoverEveryRegisteredKind(t *testing.T) {
	for _, group := range [][]checkKind{systemChecks, coreChecks, nicChecks, {kindNicPresent}} {
		for _, kind := range group {
			_, ok := checkNames[kind]
			require.True(t, ok, "missing display name for kind %d", kind)
		}
	}
}
