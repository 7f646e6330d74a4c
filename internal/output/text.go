package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
)

// TextOutput renders a Parameter as ANSI-free text. It produces the
// summary printed at exit and, through the Reporter, each live-table
// frame; the ANSI cursor control around live frames is added by the
// Reporter, never here.
type TextOutput struct{}

func (t *TextOutput) OutputParam(par rtv1.Parameter, w io.Writer) error {
	switch par.Kind() {
	case "period":
		return t.outputPeriod(par.(rtv1.PeriodSnapshot), w)
	case "audit":
		return t.outputAudit(par.(rtv1.AuditSnapshot), w)
	default:
		return fmt.Errorf("unsupported parameter kind: %s", par.Kind())
	}
}

func (t *TextOutput) outputPeriod(p rtv1.PeriodSnapshot, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("=== %s ===\n\n", p.Label))
	sb.WriteString(fmt.Sprintf("Target period: %s\n", formatNanos(p.TargetPeriodNS)))
	sb.WriteString(fmt.Sprintf("Samples: %d\n\n", p.Samples))

	sb.WriteString("--- Percentiles ---\n")
	sb.WriteString(fmt.Sprintf("p50: %s\n", formatNanos(p.P50)))
	sb.WriteString(fmt.Sprintf("p90: %s\n", formatNanos(p.P90)))
	sb.WriteString(fmt.Sprintf("p99: %s\n", formatNanos(p.P99)))
	sb.WriteString("\n")

	sb.WriteString("--- Buckets ---\n")
	for i, label := range p.BucketLabels {
		var count uint64
		if i < len(p.BucketCounts) {
			count = p.BucketCounts[i]
		}
		sb.WriteString(fmt.Sprintf("%-10s %d\n", label, count))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Max: %s (iteration %d)\n", formatNanos(p.MaxValueNS), p.MaxIndex))

	_, err := w.Write([]byte(sb.String()))
	return err
}

func (t *TextOutput) outputAudit(a rtv1.AuditSnapshot, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s | %s\n", a.Hostname, a.OS))
	sb.WriteString(fmt.Sprintf("%s\n", a.CPUInfo))
	sb.WriteString(fmt.Sprintf("%s\n\n", a.Kernel))

	writeSection := func(title string, outcomes []rtv1.CheckOutcome) {
		sb.WriteString(fmt.Sprintf("--- %s ---\n", title))
		for _, o := range outcomes {
			sb.WriteString(fmt.Sprintf("%-36s %-8s %s\n", o.Name, o.Status, o.Reason))
		}
		sb.WriteString("\n")
	}

	writeSection("System", a.System)
	writeSection(fmt.Sprintf("Core %d", a.CPU), a.Core)
	if a.NIC != nil {
		writeSection(fmt.Sprintf("NIC %s", *a.NIC), a.NICChecks)
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}

// formatNanos converts nanoseconds to a human-readable duration string.
func formatNanos(ns uint64) string {
	d := time.Duration(ns)
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", ns)
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(ns)/1000.0)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(ns)/1000000.0)
	default:
		return fmt.Sprintf("%.3fs", float64(ns)/1000000000.0)
	}
}
