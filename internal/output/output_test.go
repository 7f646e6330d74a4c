package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
)

func TestTextOutputPeriodSnapshot(t *testing.T) {
	p := rtv1.PeriodSnapshot{
		Label:          "Cyclic",
		TargetPeriodNS: 1_000_000,
		Samples:        98,
		BucketLabels:   []string{"Great", "Good", "Poor", "Bad", "Pathetic"},
		BucketCounts:   []uint64{98, 0, 0, 0, 0},
		P50:            900_000,
		P90:            950_000,
		P99:            990_000,
		MaxValueNS:      1_010_000,
		MaxIndex:       42,
	}

	var buf bytes.Buffer
	out := &TextOutput{}
	require.NoError(t, out.OutputParam(p, &buf))

	text := buf.String()
	assert.Contains(t, text, "Cyclic")
	assert.Contains(t, text, "Great")
	assert.Contains(t, text, "iteration 42")
	assert.NotContains(t, text, "\033[") // no ANSI control codes in the exit summary
}

func TestTextOutputAuditSnapshot(t *testing.T) {
	nic := "eth0"
	a := rtv1.AuditSnapshot{
		Hostname: "rig01",
		OS:       "Debian GNU/Linux 12",
		Kernel:   "Linux 6.6.0-rt PREEMPT_RT",
		CPUInfo:  "CPU: Intel (8 logical, 4 physical)",
		CPU:      3,
		NIC:      &nic,
		System: []rtv1.CheckOutcome{
			{Name: "PREEMPT_RT active", Status: "pass", Reason: "/sys/kernel/realtime=1"},
		},
		Core: []rtv1.CheckOutcome{
			{Name: "RT core isolated", Status: "pass", Reason: "isolated list: 1-3,5"},
		},
		NICChecks: []rtv1.CheckOutcome{
			{Name: "NIC link is UP", Status: "pass", Reason: "operstate=up"},
		},
	}

	var buf bytes.Buffer
	out := &TextOutput{}
	require.NoError(t, out.OutputParam(a, &buf))

	text := buf.String()
	assert.Contains(t, text, "rig01")
	assert.Contains(t, text, "NIC eth0")
	assert.Contains(t, text, "PREEMPT_RT active")
}

func TestJsonOutputRoundTrips(t *testing.T) {
	p := rtv1.PeriodSnapshot{Label: "Sender", TargetPeriodNS: 1000, Samples: 1}

	var buf bytes.Buffer
	out := &JsonOutput{}
	require.NoError(t, out.OutputParam(p, &buf))

	assert.Contains(t, buf.String(), `"label": "Sender"`)
}

func TestTextOutputUnsupportedKind(t *testing.T) {
	out := &TextOutput{}
	err := out.OutputParam(unsupportedParam{}, &bytes.Buffer{})
	assert.Error(t, err)
}

type unsupportedParam struct{}

func (unsupportedParam) Kind() string { return "unsupported" }
