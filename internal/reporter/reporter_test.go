package reporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsi-robotics/rtcat-eval/internal/output"
	"github.com/rsi-robotics/rtcat-eval/internal/report"
)

type fakeRunning struct{ running bool }

func (f *fakeRunning) IsRunning() bool { return f.running }

func TestRedrawWritesOneFrameWithoutCursorMovementOnFirstDraw(t *testing.T) {
	rep := report.New("Sender", 1000, 0)
	rep.AddObservation(1000, 1)

	var buf bytes.Buffer
	r := New(&buf, []Source{{Label: "Sender", Report: rep}})
	r.redraw()

	require.NotContains(t, buf.String(), "\033[")
	require.Contains(t, buf.String(), "elapsed:")
}

func TestRedrawOnSecondFrameEmitsCursorUpAndClear(t *testing.T) {
	rep := report.New("Sender", 1000, 0)
	rep.AddObservation(1000, 1)

	var buf bytes.Buffer
	r := New(&buf, []Source{{Label: "Sender", Report: rep}})
	r.redraw()
	firstLen := buf.Len()
	r.redraw()

	second := buf.String()[firstLen:]
	require.True(t, strings.HasPrefix(second, "\033["))
	require.Contains(t, second, "\033[J")
}

func TestRunDrawsAtLeastOneFinalFrameWhenAlreadyStopped(t *testing.T) {
	rep := report.New("Sender", 1000, 0)
	var buf bytes.Buffer
	r := New(&buf, []Source{{Label: "Sender", Report: rep}})

	r.Run(&fakeRunning{running: false})

	require.Contains(t, buf.String(), "elapsed:")
}

func TestRedrawSkipsNilReportSources(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, []Source{{Label: "Cyclic", Report: nil}})
	r.redraw()

	require.Contains(t, buf.String(), "elapsed:")
}

func TestFinalSummaryWritesEverySourceThroughTextOutput(t *testing.T) {
	rep := report.New("Sender", 1000, 0)
	rep.AddObservation(1100, 1)

	var buf bytes.Buffer
	err := FinalSummary(&buf, []Source{{Label: "Sender", Report: rep}}, &output.TextOutput{})

	require.NoError(t, err)
	require.Contains(t, buf.String(), "Sender")
}

func TestFinalSummarySkipsNilReports(t *testing.T) {
	var buf bytes.Buffer
	err := FinalSummary(&buf, []Source{{Label: "Cyclic", Report: nil}}, &output.TextOutput{})

	require.NoError(t, err)
	require.Empty(t, buf.String())
}
