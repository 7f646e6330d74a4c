// Package driver implements the Cyclic Driver: an absolute-time loop
// that wakes every T nanoseconds on a pinned, priority-elevated
// thread, optionally invokes a pluggable Probe, and feeds per-cycle
// deltas to a Timer Report.
package driver

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/rsi-robotics/rtcat-eval/internal/report"
	"github.com/rsi-robotics/rtcat-eval/internal/sysrt"
)

// RunIndefinitely is the sentinel iteration count meaning "no cap".
const RunIndefinitely uint64 = 0

// Clock abstracts the monotonic clock and the cancellation-safe
// absolute-time sleep so the Driver is testable without real-time
// scheduling privileges.
type Clock interface {
	// NowNanos returns the current monotonic time in nanoseconds.
	NowNanos() uint64
	// SleepAbsolute blocks until the monotonic clock reaches
	// deadlineNanos, re-sleeping to the same deadline if interrupted
	// early by a delivered signal.
	SleepAbsolute(deadlineNanos uint64) error
}

// realClock is the production Clock, backed by CLOCK_MONOTONIC and
// clock_nanosleep(TIMER_ABSTIME).
type realClock struct{}

func (realClock) NowNanos() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1_000_000_000 + uint64(ts.Nsec)
}

func (realClock) SleepAbsolute(deadlineNanos uint64) error {
	ts := unix.Timespec{
		Sec:  int64(deadlineNanos / 1_000_000_000),
		Nsec: int64(deadlineNanos % 1_000_000_000),
	}
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			ts.Sec = int64(deadlineNanos / 1_000_000_000)
			ts.Nsec = int64(deadlineNanos % 1_000_000_000)
			continue
		}
		return err
	}
}

// NewRealClock returns the production CLOCK_MONOTONIC-backed Clock.
func NewRealClock() Clock { return realClock{} }

// Probe is invoked once per cycle by the Driver. Invoke performs
// whatever per-cycle I/O the Probe owns; the NIC receiver's Invoke
// blocks until a frame arrives. A nil Probe is the "cyclic-only" mode
// named in the spec's closed Probe variant.
type Probe interface {
	// Invoke runs the per-cycle action. It returns false on any
	// terminal condition, which causes the Driver to stop.
	Invoke() bool
}

// ProbeFunc adapts a plain function into a Probe.
type ProbeFunc func() bool

func (f ProbeFunc) Invoke() bool { return f() }

// Params configures one Driver loop.
type Params struct {
	Label      string // used for log fields and trace_marker messages, e.g. "sender", "receiver"
	Priority   int
	CPU        int
	PeriodNS   uint64
	Iterations uint64 // RunIndefinitely for no cap
	Probe      Probe  // nil for cyclic-only mode
}

// Driver owns one measurement loop and the Running flag it shares
// with its siblings.
type Driver struct {
	params Params
	clock  Clock
	report *report.Report
	running *Running
	log    *logrus.Entry
}

// Running is the process-wide cooperative-cancellation flag shared by
// every Driver and the Reporter. The zero value is
// "running". Go's memory model gives every atomic operation
// sequential consistency, which subsumes the acquire/release ordering
// the spec requires.
type Running struct {
	stopped atomic.Bool
}

// Stop clears the flag.
func (r *Running) Stop() {
	r.stopped.Store(true)
}

// IsRunning reports whether Stop has not yet been called.
func (r *Running) IsRunning() bool {
	return !r.stopped.Load()
}

// New constructs a Driver. rep must outlive the Driver's Run call; it
// is owned by the orchestrator per the spec's ownership rule, not by
// the Driver.
func New(params Params, clock Clock, rep *report.Report, running *Running, log *logrus.Logger) *Driver {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Driver{
		params:  params,
		clock:   clock,
		report:  rep,
		running: running,
		log: log.WithFields(logrus.Fields{
			"component": params.Label,
			"cpu":       params.CPU,
		}),
	}
}

// configureThread elevates this goroutine's OS thread to SCHED_FIFO at
// the configured priority and pins it to the configured CPU. The
// caller must have already called runtime.LockOSThread(), since both
// operations are thread-local on Linux.
func (d *Driver) configureThread() error {
	if err := schedSetscheduler(0, unix.SCHED_FIFO, &schedParam{Priority: int32(d.params.Priority)}); err != nil {
		return fmt.Errorf("set scheduler to SCHED_FIFO priority %d: %w", d.params.Priority, err)
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(d.params.CPU)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("set cpu affinity to cpu %d: %w", d.params.CPU, err)
	}
	return nil
}

// schedParam mirrors the kernel's struct sched_param, which
// golang.org/x/sys/unix does not wrap on linux/amd64.
type schedParam struct {
	Priority int32
}

// schedSetscheduler invokes the sched_setscheduler(2) syscall
// directly, since golang.org/x/sys/unix has no wrapper for it.
func schedSetscheduler(pid int, policy int, param *schedParam) error {
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, uintptr(pid), uintptr(policy), uintptr(unsafe.Pointer(param)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Run executes the absolute-time cyclic loop on the calling goroutine
// until running is cleared or the iteration cap is reached. It must be
// called from a goroutine dedicated to this Driver: it locks the OS
// thread for its own lifetime.
func (d *Driver) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := d.configureThread(); err != nil {
		d.running.Stop()
		d.log.WithError(err).Error("thread setup failed")
		d.markTraceEvent("thread setup failed")
		return
	}

	var index uint64
	var previous uint64
	next := d.clock.NowNanos()

	for d.running.IsRunning() && (d.params.Iterations == RunIndefinitely || index < d.params.Iterations) {
		recordTime := d.shouldRecord(index)

		if d.params.Probe != nil {
			if !d.params.Probe.Invoke() {
				d.running.Stop()
				d.log.WithField("index", index).Error("probe reported a terminal condition")
				d.markTraceEvent(fmt.Sprintf("probe reported a terminal condition at index %d", index))
				return
			}
		}

		current := d.clock.NowNanos()
		if recordTime {
			d.report.AddObservation(current-previous, index)
		}

		next += d.params.PeriodNS
		for current > next {
			next += d.params.PeriodNS
		}

		if err := d.clock.SleepAbsolute(next); err != nil {
			d.running.Stop()
			d.log.WithError(err).Error("absolute sleep failed")
			d.markTraceEvent("absolute sleep failed")
			return
		}

		previous = current
		index++
	}
}

// markTraceEvent writes a one-shot trace_marker entry for a terminal
// driver condition, letting the event line up against the kernel's
// ftrace buffer during offline diagnosis. A failure to write is logged
// and otherwise ignored: it never changes the Driver's own shutdown
// path, which has already been decided by the caller.
func (d *Driver) markTraceEvent(message string) {
	if err := sysrt.WriteTraceMarker(fmt.Sprintf("rtcat[%s]: %s", d.params.Label, message)); err != nil {
		d.log.WithError(err).Debug("trace_marker write failed")
	}
}

// shouldRecord implements the spec's warm-up/teardown skip rule:
// iteration 0 is always skipped; iteration N-1 is skipped only when
// Iterations is finite.
func (d *Driver) shouldRecord(index uint64) bool {
	if index == 0 {
		return false
	}
	if d.params.Iterations != RunIndefinitely && index == d.params.Iterations-1 {
		return false
	}
	return true
}
