// Package sysrt provides the two system-level real-time facilities the
// evaluator holds for the life of a run: the /dev/cpu_dma_latency idle
// override and one-shot writes to the kernel's trace_marker file.
package sysrt

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// cpuDMALatencyPath is the well-known PM-QoS device that, held open
// with a 32-bit zero written into it, keeps the CPU out of deep idle
// states for as long as the descriptor stays open.
const cpuDMALatencyPath = "/dev/cpu_dma_latency"

// traceMarkerPaths are tried in order: the modern tracefs mount first,
// falling back to the older debugfs location.
var traceMarkerPaths = []string{
	"/sys/kernel/tracing/trace_marker",
	"/sys/kernel/debug/tracing/trace_marker",
}

// LatencyTarget holds the open /dev/cpu_dma_latency handle, if any. Its
// zero value is safe to Close: an unopened target has nothing to
// release.
type LatencyTarget struct {
	file *os.File
}

// OpenLatencyTarget opens /dev/cpu_dma_latency and writes a 32-bit zero
// into it, asking the power management subsystem not to enter a deep
// C-state for as long as the returned LatencyTarget stays open. Any
// failure to stat, open, or write is logged and otherwise ignored: the
// run proceeds without the latency hint rather than aborting over it.
func OpenLatencyTarget(log *logrus.Logger) *LatencyTarget {
	if _, err := os.Stat(cpuDMALatencyPath); err != nil {
		log.WithError(err).Warn("cpu_dma_latency device not present, continuing without a latency hint")
		return &LatencyTarget{}
	}

	f, err := os.OpenFile(cpuDMALatencyPath, os.O_RDWR, 0)
	if err != nil {
		log.WithError(err).Warn("open cpu_dma_latency failed, continuing without a latency hint")
		return &LatencyTarget{}
	}

	var zero [4]byte
	if n, err := f.Write(zero[:]); err != nil || n < 1 {
		log.WithError(err).Warn("write to cpu_dma_latency failed")
	}

	return &LatencyTarget{file: f}
}

// Close releases the latency target, letting the power management
// subsystem resume normal idle behavior. Safe to call on an unopened
// target.
func (lt *LatencyTarget) Close() error {
	if lt.file == nil {
		return nil
	}
	return lt.file.Close()
}

// WriteTraceMarker opens the kernel's trace_marker facility, writes one
// event message, and closes it immediately: unlike the latency target,
// this facility is opened write-once per event, never held open.
func WriteTraceMarker(message string) error {
	var (
		f   *os.File
		err error
	)
	for _, path := range traceMarkerPaths {
		f, err = os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("open trace_marker: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(message); err != nil {
		return fmt.Errorf("write trace_marker: %w", err)
	}
	return nil
}
