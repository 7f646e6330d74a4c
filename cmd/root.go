// Package cmd wires the CLI surface (cobra flags, viper environment
// overrides) into a resolved internal/config.Config and drives the
// measurement or configuration-audit run, per SPEC_FULL.md §6.
package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/rsi-robotics/rtcat-eval/internal/audit"
	"github.com/rsi-robotics/rtcat-eval/internal/config"
	"github.com/rsi-robotics/rtcat-eval/internal/driver"
	"github.com/rsi-robotics/rtcat-eval/internal/output"
	"github.com/rsi-robotics/rtcat-eval/internal/probe"
	"github.com/rsi-robotics/rtcat-eval/internal/report"
	"github.com/rsi-robotics/rtcat-eval/internal/reporter"
	"github.com/rsi-robotics/rtcat-eval/internal/sysrt"
)

// version is overwritten at build time via -ldflags -X.
var version = "dev"

// envPrefix makes every flag's environment override take the form
// RTCAT_<UPPER_SNAKE_NAME>, e.g. RTCAT_NIC, RTCAT_SEND_SLEEP.
const envPrefix = "RTCAT"

var rootShort = "Measure EtherCAT-readiness latency on a real-time Linux host."

var rootLong = `
rtcat drives a tightly scheduled cyclic timer on an isolated CPU core,
optionally exchanging raw Ethernet frames with an EtherCAT drive, and
reports wake-up jitter as a live latency distribution. Before or
instead of measuring, it audits kernel, CPU, and NIC configuration
against the preconditions of a deterministic real-time workload.`

// NewRootCmd constructs the root command.
func NewRootCmd() *cobra.Command {
	flags := NewFlags()

	cmd := &cobra.Command{
		Use:                   "rtcat",
		Short:                 rootShort,
		Long:                  rootLong,
		Version:               version,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.ToConfig()
			if err != nil {
				return err
			}
			return Run(cfg, cmd.OutOrStdout())
		},
	}

	flags.AddFlags(cmd)
	bindEnv(cmd)

	return cmd
}

// Execute runs the root command and returns its exit code, per
// spec.md §6's exit-code table.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// Flags holds the raw, unvalidated cobra flag values before
// conversion into a config.Config.
type Flags struct {
	NIC             string
	Iterations      uint64
	SendSleepUS     uint64
	SendPriority    int
	ReceivePriority int
	SendCPU         int
	ReceiveCPU      int
	Verbose         bool
	NoConfig        bool
	OnlyConfig      bool
	BucketWidthUS   uint64
}

// NewFlags seeds Flags with the documented defaults.
func NewFlags() *Flags {
	d := config.Defaults()
	return &Flags{
		SendSleepUS:     config.DefaultSendSleepUS,
		SendPriority:    d.SendPriority,
		ReceivePriority: d.ReceivePriority,
		SendCPU:         d.SendCPU,
		ReceiveCPU:      d.ReceiveCPU,
	}
}

// AddFlags registers every flag from spec.md §6's CLI surface. pflag
// shorthands are restricted to a single rune, so the multi-letter
// aliases the spec documents (-sp, -rp, -sc, -rc, -nc, -oc) are long
// flags only; every flag remains reachable by its long name or its
// RTCAT_ environment variable.
func (f *Flags) AddFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.NIC, "nic", "n", f.NIC, "Network interface card name (default: none, cyclic-only mode)")
	fs.Uint64VarP(&f.Iterations, "iterations", "i", f.Iterations, "Number of iterations (default: run indefinitely)")
	fs.Uint64VarP(&f.SendSleepUS, "send-sleep", "s", f.SendSleepUS, "Target cycle period in microseconds")
	fs.IntVar(&f.SendPriority, "send-priority", f.SendPriority, "Sender thread SCHED_FIFO priority")
	fs.IntVar(&f.ReceivePriority, "receive-priority", f.ReceivePriority, "Receiver thread SCHED_FIFO priority")
	fs.IntVar(&f.SendCPU, "send-cpu", f.SendCPU, "CPU core for the sender thread (default: last logical core)")
	fs.IntVar(&f.ReceiveCPU, "receive-cpu", f.ReceiveCPU, "CPU core for the receiver thread (default: last logical core)")
	fs.BoolVarP(&f.Verbose, "verbose", "v", f.Verbose, "Enable verbose output (hardware/software timestamp deltas)")
	fs.BoolVar(&f.NoConfig, "no-config", f.NoConfig, "Skip the configuration audit")
	fs.BoolVar(&f.OnlyConfig, "only-config", f.OnlyConfig, "Run the configuration audit only, then exit")
	fs.Uint64VarP(&f.BucketWidthUS, "bucket-width", "b", f.BucketWidthUS, "Bucket width in microseconds (default: auto, period/8)")

	for _, name := range []string{"nic", "iterations", "send-sleep", "send-priority", "receive-priority",
		"send-cpu", "receive-cpu", "verbose", "no-config", "only-config", "bucket-width"} {
		viper.BindPFlag(name, fs.Lookup(name))
	}
}

// bindEnv wires viper's automatic environment lookup to the
// RTCAT_<UPPER_SNAKE_NAME> form, with explicit-flag taking precedence
// over the environment variable, which in turn takes precedence over
// the documented default (SPEC_FULL.md §6).
func bindEnv(cmd *cobra.Command) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// ToConfig resolves flags (with viper's environment overlay already
// applied through BindPFlag) into a validated config.Config.
func (f *Flags) ToConfig() (config.Config, error) {
	cfg := config.Config{
		NIC:             viper.GetString("nic"),
		Iterations:      viper.GetUint64("iterations"),
		PeriodNS:        viper.GetUint64("send-sleep") * 1000,
		SendPriority:    viper.GetInt("send-priority"),
		ReceivePriority: viper.GetInt("receive-priority"),
		SendCPU:         viper.GetInt("send-cpu"),
		ReceiveCPU:      viper.GetInt("receive-cpu"),
		Verbose:         viper.GetBool("verbose"),
		NoConfig:        viper.GetBool("no-config"),
		OnlyConfig:      viper.GetBool("only-config"),
	}
	if us := viper.GetUint64("bucket-width"); us > 0 {
		cfg.BucketWidthNS = us * 1000
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Run drives one full invocation: the optional configuration audit,
// then the optional measurement run, following the original
// evaluator's ordering (audit before measurement, never interleaved).
func Run(cfg config.Config, out io.Writer) error {
	if unix.Geteuid() != 0 {
		return fmt.Errorf("not running as root; this may cause failures accessing system configuration or opening raw sockets")
	}

	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("lock memory: %w", err)
	}

	if err := cfg.ValidateCPUBounds(runtime.NumCPU()); err != nil {
		return err
	}

	log := logrus.New()

	latencyTarget := sysrt.OpenLatencyTarget(log)
	defer latencyTarget.Close()

	if !cfg.NoConfig {
		runAudit(cfg, log, out)
	}
	if cfg.OnlyConfig {
		return nil
	}

	return runMeasurement(cfg, log, out)
}

func runAudit(cfg config.Config, log *logrus.Logger, out io.Writer) {
	a := audit.New(audit.SystemFileSystemDataSource{})
	snapshot := a.Run(cfg.SendCPU, cfg.NIC)

	text := &output.TextOutput{}
	if err := text.OutputParam(snapshot, out); err != nil {
		log.WithError(err).Error("failed to print configuration audit")
	}
}

func runMeasurement(cfg config.Config, log *logrus.Logger, out io.Writer) error {
	running := &driver.Running{}

	var (
		sendReport *report.Report
		recvReport *report.Report
		nicProbe   *probe.Probe
		sources    []reporter.Source
	)

	if cfg.HasNIC() {
		sendReport = report.New("Sender", cfg.PeriodNS, cfg.BucketWidthNS)
		recvReport = report.New("Receiver", cfg.PeriodNS, cfg.BucketWidthNS)
		sources = []reporter.Source{{Label: "Sender", Report: sendReport}, {Label: "Receiver", Report: recvReport}}

		var err error
		nicProbe, err = probe.New(probe.Options{
			Interface: cfg.NIC,
			PeriodNS:  cfg.PeriodNS,
			BucketNS:  cfg.BucketWidthNS,
			Verbose:   cfg.Verbose,
		})
		if err != nil {
			return fmt.Errorf("open NIC probe: %w", err)
		}
		defer nicProbe.Close()

		if cfg.Verbose {
			sources = append(sources,
				reporter.Source{Label: "HW delta", Report: nicProbe.HWDelta},
				reporter.Source{Label: "SW delta", Report: nicProbe.SWDelta},
			)
		}
	} else {
		sendReport = report.New("Cyclic", cfg.PeriodNS, cfg.BucketWidthNS)
		sources = []reporter.Source{{Label: "Cyclic", Report: sendReport}}
	}

	live := reporter.New(out, sources)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		live.Run(running)
	}()

	if cfg.HasNIC() {
		senderDriver := driver.New(driver.Params{
			Label:      "sender",
			Priority:   cfg.SendPriority,
			CPU:        cfg.SendCPU,
			PeriodNS:   cfg.PeriodNS,
			Iterations: cfg.Iterations,
			Probe:      probe.SenderProbe{Probe: nicProbe},
		}, nil, sendReport, running, log)

		receiverDriver := driver.New(driver.Params{
			Label:      "receiver",
			Priority:   cfg.ReceivePriority,
			CPU:        cfg.ReceiveCPU,
			PeriodNS:   cfg.PeriodNS,
			Iterations: cfg.Iterations,
			Probe:      probe.ReceiverProbe{Probe: nicProbe},
		}, nil, recvReport, running, log)

		var threads sync.WaitGroup
		threads.Add(2)
		go func() { defer threads.Done(); receiverDriver.Run() }()
		go func() { defer threads.Done(); senderDriver.Run() }()
		threads.Wait()
	} else {
		cyclicDriver := driver.New(driver.Params{
			Label:      "cyclic",
			Priority:   cfg.SendPriority,
			CPU:        cfg.SendCPU,
			PeriodNS:   cfg.PeriodNS,
			Iterations: cfg.Iterations,
			Probe:      nil,
		}, nil, sendReport, running, log)
		cyclicDriver.Run()
	}

	// A Driver clears running only on a thread setup failure, a probe
	// terminal condition, or a failed sleep; reaching the iteration cap
	// leaves it set.
	failed := !running.IsRunning()
	running.Stop()
	wg.Wait()

	text := &output.TextOutput{}
	if err := reporter.FinalSummary(out, sources, text); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("measurement stopped early after a thread error")
	}
	return nil
}
