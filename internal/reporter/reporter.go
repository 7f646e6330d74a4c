// Package reporter implements the live reporting table: a 20Hz
// coordinator that polls every attached Timer Report and redraws a
// terminal table in place using ANSI cursor control, per
// SPEC_FULL.md §4.2/§5.
package reporter

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rsi-robotics/rtcat-eval/internal/output"
	"github.com/rsi-robotics/rtcat-eval/internal/report"
)

// Interval is the live-table redraw cadence, matching the original
// evaluator's 20Hz live reporter.
const Interval = 50 * time.Millisecond

// Source is one named Report the Reporter polls every tick.
type Source struct {
	Label  string
	Report *report.Report
}

// running is the minimal interface the Reporter needs from
// driver.Running, kept local so this package never imports
// internal/driver.
type running interface {
	IsRunning() bool
}

// Reporter redraws a live table of every attached Source in place
// using ANSI cursor-up/clear-to-end-of-screen, until its Running flag
// is cleared.
type Reporter struct {
	sources []Source
	out     *output.TextOutput
	w       io.Writer
	start   time.Time

	linesWritten int
}

// New constructs a Reporter writing to w.
func New(w io.Writer, sources []Source) *Reporter {
	return &Reporter{
		sources: sources,
		out:     &output.TextOutput{},
		w:       w,
		start:   time.Now(),
	}
}

// Run redraws the table every Interval until isRunning reports false,
// then draws one final frame. It is meant to run on its own
// goroutine, separate from every measurement Driver.
func (r *Reporter) Run(isRunning running) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for isRunning.IsRunning() {
		r.redraw()
		<-ticker.C
	}
	r.redraw()
}

// redraw clears the previously printed lines (if any) and reprints
// every source's current snapshot plus the elapsed-time footer.
func (r *Reporter) redraw() {
	var frame bytes.Buffer
	for _, s := range r.sources {
		if s.Report == nil {
			continue
		}
		r.out.OutputParam(s.Report.Snapshot(), &frame)
	}
	frame.WriteString("elapsed: " + time.Since(r.start).Round(time.Millisecond).String() + "\n")

	if r.linesWritten > 0 {
		io.WriteString(r.w, ansiCursorUp(r.linesWritten))
		io.WriteString(r.w, ansiClearToEnd)
	}
	r.w.Write(frame.Bytes())
	r.linesWritten = strings.Count(frame.String(), "\n")
}

func ansiCursorUp(n int) string {
	if n <= 0 {
		return ""
	}
	return "\033[" + strconv.Itoa(n) + "A"
}

const ansiClearToEnd = "\033[J"

// FinalSummary writes every source's final snapshot through out
// (text or JSON) without any ANSI control codes.
func FinalSummary(w io.Writer, sources []Source, out output.ParameterOutput) error {
	for _, s := range sources {
		if s.Report == nil {
			continue
		}
		if err := out.OutputParam(s.Report.Snapshot(), w); err != nil {
			return err
		}
	}
	return nil
}
