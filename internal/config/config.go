// Package config resolves the CLI/environment surface into one
// immutable Config before any thread, lock, or raw socket is created,
// per SPEC_FULL.md §5's "configuration resolution happens once"
// requirement.
package config

import (
	"fmt"
	"runtime"
)

// NoNIC is the sentinel meaning "cyclic-only mode": no raw socket is
// opened and no NIC Check group runs.
const NoNIC = ""

// RunIndefinitely is the sentinel iteration count meaning "no cap".
const RunIndefinitely uint64 = 0

const (
	DefaultSendSleepUS     = 1000
	DefaultSendPriority    = 42
	DefaultReceivePriority = 45
)

// Config is the fully-resolved, validated set of parameters the
// evaluator runs with. Nothing under internal/driver, internal/probe,
// or internal/report reads flags or the environment directly; they
// only ever see a Config.
type Config struct {
	NIC        string // NoNIC for cyclic-only mode
	Iterations uint64 // RunIndefinitely for no cap

	PeriodNS      uint64
	BucketWidthNS uint64 // 0 selects the automatic period/8 default

	SendPriority    int
	ReceivePriority int
	SendCPU         int
	ReceiveCPU      int

	Verbose    bool
	NoConfig   bool
	OnlyConfig bool
}

// Defaults returns the documented defaults before any flag or
// environment override is applied. SendCPU/ReceiveCPU default to the
// last logical core, resolved against the host's reported core count.
func Defaults() Config {
	last := lastLogicalCPU()
	return Config{
		NIC:             NoNIC,
		Iterations:      RunIndefinitely,
		PeriodNS:        DefaultSendSleepUS * 1000,
		BucketWidthNS:   0,
		SendPriority:    DefaultSendPriority,
		ReceivePriority: DefaultReceivePriority,
		SendCPU:         last,
		ReceiveCPU:      last,
	}
}

func lastLogicalCPU() int {
	n := runtime.NumCPU()
	if n <= 0 {
		return 0
	}
	return n - 1
}

// Validate enforces the CLI's mutual-exclusion and range rules. A
// non-nil error here is a class-(a) setup error: report to stderr and
// exit 1 before any thread starts.
func (c Config) Validate() error {
	if c.NoConfig && c.OnlyConfig {
		return fmt.Errorf("--no-config and --only-config are mutually exclusive")
	}
	if c.PeriodNS == 0 {
		return fmt.Errorf("--send-sleep must be greater than zero")
	}
	if c.SendCPU < 0 {
		return fmt.Errorf("--send-cpu must not be negative")
	}
	if c.ReceiveCPU < 0 {
		return fmt.Errorf("--receive-cpu must not be negative")
	}
	return nil
}

// ValidateCPUBounds checks SendCPU and ReceiveCPU against the host's
// online CPU count. This is separate from Validate because it depends
// on runtime host state rather than flag values alone, and it is
// itself a class-(a) setup error rather than a per-Check Unknown
// (SPEC_FULL.md §4.5's "CPU index bounds validation").
func (c Config) ValidateCPUBounds(onlineCPUs int) error {
	if c.SendCPU >= onlineCPUs {
		return fmt.Errorf("--send-cpu %d out of range for %d online CPUs", c.SendCPU, onlineCPUs)
	}
	if c.ReceiveCPU >= onlineCPUs {
		return fmt.Errorf("--receive-cpu %d out of range for %d online CPUs", c.ReceiveCPU, onlineCPUs)
	}
	return nil
}

// HasNIC reports whether a NIC was selected.
func (c Config) HasNIC() bool { return c.NIC != NoNIC }
