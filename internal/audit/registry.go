package audit

// checkKind is the closed, compile-time-known tag identifying one
// Check. Polymorphism over Checks is a tagged variant dispatched
// through evaluate, not an open interface hierarchy a caller could
// extend at runtime.
type checkKind int

const (
	kindPreemptRTActive checkKind = iota
	kindSwapDisabled
	kindTimerMigration
	kindRtThrottling
	kindClocksource
	kindCoreIsolated
	kindNohzFull
	kindRcuNocbs
	kindCpuGovernor
	kindCpuFrequency
	kindIrqAffinityDefaultAvoidsRt
	kindNoUnrelatedIrqsOnRt
	kindSmtSiblingIsolated
	kindCStatesCapped
	kindTurboPolicy
	kindNicPresent
	kindNicLinkUp
	kindNicQuiet
	kindNicIrqsPinned
	kindRpsDisabled
)

// evaluate dispatches one Check by kind.
func evaluate(kind checkKind, ctx Context, ds DataSource) Result {
	switch kind {
	case kindPreemptRTActive:
		return evaluatePreemptRTActive(ctx, ds)
	case kindSwapDisabled:
		return evaluateSwapDisabled(ctx, ds)
	case kindTimerMigration:
		return evaluateTimerMigration(ctx, ds)
	case kindRtThrottling:
		return evaluateRtThrottling(ctx, ds)
	case kindClocksource:
		return evaluateClocksource(ctx, ds)
	case kindCoreIsolated:
		return evaluateCoreIsolated(ctx, ds)
	case kindNohzFull:
		return evaluateNohzFull(ctx, ds)
	case kindRcuNocbs:
		return evaluateRcuNocbs(ctx, ds)
	case kindCpuGovernor:
		return evaluateCpuGovernor(ctx, ds)
	case kindCpuFrequency:
		return evaluateCpuFrequency(ctx, ds)
	case kindIrqAffinityDefaultAvoidsRt:
		return evaluateIrqAffinityDefaultAvoidsRt(ctx, ds)
	case kindNoUnrelatedIrqsOnRt:
		return evaluateNoUnrelatedIrqsOnRt(ctx, ds)
	case kindSmtSiblingIsolated:
		return evaluateSmtSiblingIsolated(ctx, ds)
	case kindCStatesCapped:
		return evaluateCStatesCapped(ctx, ds)
	case kindTurboPolicy:
		return evaluateTurboPolicy(ctx, ds)
	case kindNicPresent:
		return evaluateNicPresent(ctx, ds)
	case kindNicLinkUp:
		return evaluateNicLinkUp(ctx, ds)
	case kindNicQuiet:
		return evaluateNicQuiet(ctx, ds)
	case kindNicIrqsPinned:
		return evaluateNicIrqsPinned(ctx, ds)
	case kindRpsDisabled:
		return evaluateRpsDisabled(ctx, ds)
	default:
		return unknown("unknown check", "unrecognized check kind")
	}
}

// systemChecks run once, independent of CPU or NIC selection.
var systemChecks = []checkKind{
	kindPreemptRTActive,
	kindSwapDisabled,
	kindTimerMigration,
	kindClocksource,
}

// coreChecks are scoped to the selected RT core.
var coreChecks = []checkKind{
	kindCoreIsolated,
	kindNohzFull,
	kindRcuNocbs,
	kindCpuGovernor,
	kindCpuFrequency,
	kindIrqAffinityDefaultAvoidsRt,
	kindNoUnrelatedIrqsOnRt,
	kindSmtSiblingIsolated,
	kindCStatesCapped,
	kindTurboPolicy,
	kindRtThrottling,
}

// nicChecks run only after NIC presence passes; kindNicPresent itself
// is evaluated separately as the short-circuit gate.
var nicChecks = []checkKind{
	kindNicLinkUp,
	kindNicQuiet,
	kindNicIrqsPinned,
	kindRpsDisabled,
}
