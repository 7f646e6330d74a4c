package audit

import (
	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
)

// checkNames pairs every checkKind with the display name used in its
// Result. Kept here in one map rather than spread through checks.go so
// the name/kind correspondence is easy to audit at a glance.
var checkNames = map[checkKind]string{
	kindPreemptRTActive:            "PREEMPT_RT active",
	kindSwapDisabled:               "Swap disabled",
	kindTimerMigration:             "Timer Migration disabled",
	kindRtThrottling:               "RT throttling disabled",
	kindClocksource:                "Clocksource stable",
	kindCoreIsolated:               "RT core isolated",
	kindNohzFull:                   "nohz_full on RT core",
	kindRcuNocbs:                   "rcu_nocbs includes RT core",
	kindCpuGovernor:                "CPU governor = performance",
	kindCpuFrequency:               "CPU current frequency",
	kindIrqAffinityDefaultAvoidsRt: "irqaffinity excludes RT core",
	kindNoUnrelatedIrqsOnRt:        "No unrelated IRQs on RT core",
	kindSmtSiblingIsolated:         "SMT sibling isolated/disabled",
	kindCStatesCapped:              "Deep C-states capped",
	kindTurboPolicy:                "Turbo/boost disabled",
	kindNicPresent:                 "NIC interface present",
	kindNicLinkUp:                  "NIC link is UP",
	kindNicQuiet:                   "NIC is quiet",
	kindNicIrqsPinned:              "NIC IRQs pinned to RT core",
	kindRpsDisabled:                "RPS disabled on NIC",
}

// Auditor runs the Configuration Auditor's full check set against one
// DataSource and CPU/NIC subject pair.
type Auditor struct {
	ds DataSource
}

// New constructs an Auditor reading evidence through ds.
func New(ds DataSource) *Auditor {
	return &Auditor{ds: ds}
}

// Run evaluates every system and core Check for cpu, and the NIC
// checks for nic when nic is non-empty, producing one AuditSnapshot.
//
// cpu must already be validated against the host's online CPU range;
// Run itself does not bounds-check it, since that failure belongs to
// setup, not to any one Check's Unknown verdict.
func (a *Auditor) Run(cpu int, nic string) rtv1.AuditSnapshot {
	ctx := Context{CPU: &cpu}
	if nic != "" {
		ctx.NIC = &nic
	}

	info := GatherHostInfo(a.ds)
	snapshot := rtv1.AuditSnapshot{
		Hostname: info.Hostname,
		OS:       info.OS,
		Kernel:   info.Kernel,
		CPUInfo:  info.CPUInfo,
		CPU:      cpu,
	}
	if nic != "" {
		snapshot.NIC = &nic
	}

	snapshot.System = a.runGroup(systemChecks, ctx)
	snapshot.Core = a.runGroup(coreChecks, ctx)

	if nic != "" {
		snapshot.NICChecks = a.runNICGroup(ctx)
	}

	return snapshot
}

func (a *Auditor) runGroup(kinds []checkKind, ctx Context) []rtv1.CheckOutcome {
	out := make([]rtv1.CheckOutcome, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, toOutcome(named(evaluate(kind, ctx, a.ds), kind)))
	}
	return out
}

// runNICGroup evaluates NicPresent first as a short-circuit gate: when
// it does not pass, the remaining NIC checks are skipped entirely
// rather than each independently reporting Unknown, matching
// ReportSystemConfiguration's nic_ok gate in the original evaluator.
func (a *Auditor) runNICGroup(ctx Context) []rtv1.CheckOutcome {
	presence := named(evaluate(kindNicPresent, ctx, a.ds), kindNicPresent)
	out := []rtv1.CheckOutcome{toOutcome(presence)}

	if presence.Status != Pass {
		return out
	}

	for _, kind := range nicChecks {
		out = append(out, toOutcome(named(evaluate(kind, ctx, a.ds), kind)))
	}
	return out
}

// named fills in Result.Name from checkNames when a check evaluator
// left it blank. The evaluators in checks.go set their own name, which
// matches the checkNames entry for their kind.
func named(r Result, kind checkKind) Result {
	if r.Name == "" {
		r.Name = checkNames[kind]
	}
	return r
}

func toOutcome(r Result) rtv1.CheckOutcome {
	return rtv1.CheckOutcome{
		Name:   r.Name,
		Status: string(r.Status),
		Reason: r.Reason,
	}
}
