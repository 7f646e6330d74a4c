package audit

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// maxIrqsToShow caps how many offending IRQ rows are listed in a
// reason string before the remainder collapses into "+N more".
const maxIrqsToShow = 6

func evaluatePreemptRTActive(_ Context, ds DataSource) Result {
	const name = "PREEMPT_RT active"

	if v, ok := ds.Read("/sys/kernel/realtime"); ok {
		trimmed := strings.TrimSpace(v)
		if trimmed == "1" {
			return pass(name, "/sys/kernel/realtime=1")
		}
		if trimmed == "0" {
			return fail(name, "/sys/kernel/realtime=0")
		}
	}

	if version, ok := ds.Read("uname.version"); ok {
		if strings.Contains(version, "PREEMPT RT") || strings.Contains(version, "PREEMPT_RT") {
			return pass(name, "uname -v: "+version)
		}
	}

	if release, ok := ds.Read("uname.release"); ok {
		if config, ok := ds.Read("/boot/config-" + release); ok {
			if strings.Contains(config, "CONFIG_PREEMPT_RT=y") || strings.Contains(config, "CONFIG_PREEMPT_RT_FULL=y") {
				return pass(name, "/boot/config-"+release+" has CONFIG_PREEMPT_RT=y")
			}
			if strings.Contains(config, "CONFIG_PREEMPT=y") {
				return fail(name, "Only low-latency PREEMPT, not RT")
			}
		}
	}

	return fail(name, "No evidence of RT kernel")
}

func evaluateSwapDisabled(_ Context, ds DataSource) Result {
	const name = "Swap disabled"

	content, ok := ds.Read("/proc/swaps")
	if !ok {
		return unknown(name, "cannot read /proc/swaps")
	}

	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return unknown(name, "unexpected /proc/swaps format")
	}

	var active []string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		entry := fields[0]
		if len(fields) >= 4 {
			entry += " size=" + fields[2] + " used=" + fields[3]
		}
		active = append(active, entry)
	}

	if len(active) == 0 {
		return pass(name, "/proc/swaps empty")
	}
	return fail(name, "active: "+strings.Join(active, ", "))
}

func evaluateTimerMigration(_ Context, ds DataSource) Result {
	const name = "Timer Migration disabled"

	v, ok := ds.Read("/proc/sys/kernel/timer_migration")
	if !ok {
		return unknown(name, "cannot read timer_migration")
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "0" {
		return pass(name, "timer_migration=0")
	}
	return fail(name, "timer_migration="+trimmed)
}

func evaluateRtThrottling(_ Context, ds DataSource) Result {
	const name = "RT throttling disabled"

	v, ok := ds.Read("/proc/sys/kernel/sched_rt_runtime_us")
	if !ok {
		return unknown(name, "cannot read sched_rt_runtime_us")
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "-1" {
		return pass(name, "sched_rt_runtime_us=-1")
	}
	return fail(name, "sched_rt_runtime_us="+trimmed)
}

func evaluateClocksource(_ Context, ds DataSource) Result {
	const name = "Clocksource stable"
	const base = "/sys/devices/system/clocksource/clocksource0/"

	v, ok := ds.Read(base + "current_clocksource")
	if !ok {
		return unknown(name, "cannot read current_clocksource")
	}
	current := strings.TrimSpace(v)

	switch current {
	case "tsc":
		return pass(name, "tsc")
	case "hpet":
		return pass(name, "hpet")
	case "arch_sys_counter":
		return pass(name, "arch_sys_counter")
	}

	detail := current
	if available, ok := ds.Read(base + "available_clocksource"); ok {
		detail += "; available=" + strings.TrimSpace(available)
	}
	if current == "jiffies" {
		return fail(name, detail)
	}
	return unknown(name, detail)
}

func evaluateCoreIsolated(ctx Context, ds DataSource) Result {
	const name = "RT core isolated"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	v, ok := ds.Read("/sys/devices/system/cpu/isolated")
	if !ok {
		return unknown(name, "no /sys/.../isolated")
	}
	raw := strings.TrimSpace(v)
	display := raw
	if display == "" {
		display = "(empty)"
	}

	if cpu == 0 {
		return fail(name, "CPU0 selected; choose non-CPU0")
	}
	if cpuListContains(raw, cpu) {
		return pass(name, "isolated list: "+display)
	}
	return fail(name, fmt.Sprintf("CPU%d not in isolated: %s", cpu, display))
}

func evaluateNohzFull(ctx Context, ds DataSource) Result {
	const name = "nohz_full on RT core"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	if v, ok := ds.Read("/sys/devices/system/cpu/nohz_full"); ok {
		raw := strings.TrimSpace(v)
		display := raw
		if display == "" {
			display = "(empty)"
		}
		if cpuListContains(raw, cpu) {
			return pass(name, "nohz_full list: "+display)
		}
		return fail(name, fmt.Sprintf("CPU%d not in nohz_full: %s", cpu, display))
	}

	if v, ok := ds.CmdlineParam("nohz_full"); ok {
		if cpuListContains(v, cpu) {
			return pass(name, "cmdline nohz_full="+v)
		}
		return fail(name, "RT core not in cmdline nohz_full="+v)
	}

	return unknown(name, "no sysfs entry and no cmdline param")
}

func evaluateRcuNocbs(ctx Context, ds DataSource) Result {
	const name = "rcu_nocbs includes RT core"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	var raw string
	if v, ok := ds.Read("/sys/devices/system/cpu/rcu_nocbs"); ok {
		raw = strings.TrimSpace(v)
	} else if v, ok := ds.CmdlineParam("rcu_nocbs"); ok {
		raw = strings.TrimSpace(v)
	} else {
		return unknown(name, "no sysfs and no cmdline param")
	}

	if cpuListContains(raw, cpu) {
		return pass(name, raw)
	}
	display := raw
	if display == "" {
		display = "(empty)"
	}
	return fail(name, fmt.Sprintf("CPU%d not in rcu_nocbs: %s", cpu, display))
}

func evaluateCpuGovernor(ctx Context, ds DataSource) Result {
	const name = "CPU governor = performance"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	path := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cpufreq/scaling_governor", cpu)
	v, ok := ds.Read(path)
	if !ok {
		return unknown(name, fmt.Sprintf("no cpufreq governor for cpu%d", cpu))
	}
	governor := strings.TrimSpace(v)
	if governor == "performance" {
		return pass(name, "governor="+governor)
	}
	return fail(name, "governor="+governor)
}

func evaluateCpuFrequency(ctx Context, ds DataSource) Result {
	const name = "CPU current frequency"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	base := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cpufreq/", cpu)
	current, hasCurrent := readInt64(ds, base+"scaling_cur_freq")
	min, hasMin := readInt64(ds, base+"scaling_min_freq")
	max, hasMax := readInt64(ds, base+"scaling_max_freq")

	if hasCurrent && hasMin && hasMax {
		if min == max {
			tolerance := (max * 5) / 100
			if absInt64(current-max) <= tolerance {
				return pass(name, fmt.Sprintf("%d kHz (locked)", max))
			}
			return fail(name, fmt.Sprintf("cur=%d kHz, locked=%d kHz", current, max))
		}
		return fail(name, fmt.Sprintf("cur=%d kHz, min=%d kHz, max=%d kHz", current, min, max))
	}
	if hasCurrent || hasMin || hasMax {
		return unknown(name, fmt.Sprintf("cur=%s, min=%s, max=%s", optionalKHz(current, hasCurrent), optionalKHz(min, hasMin), optionalKHz(max, hasMax)))
	}

	if cpuinfo, ok := ds.Read("/proc/cpuinfo"); ok {
		if mhz, ok := scanCPUInfoMHz(cpuinfo, cpu); ok {
			return unknown(name, fmt.Sprintf("%g MHz (/proc/cpuinfo)", mhz))
		}
	}

	return unknown(name, "unavailable")
}

func scanCPUInfoMHz(cpuinfo string, cpu int) (float64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(cpuinfo))
	currentProcessor := -1
	var mhz float64
	var haveMHz bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "processor") {
			if pos := strings.IndexByte(line, ':'); pos >= 0 {
				if v, err := strconv.Atoi(strings.TrimSpace(line[pos+1:])); err == nil {
					currentProcessor = v
				}
			}
		} else if strings.HasPrefix(line, "cpu MHz") && currentProcessor == cpu {
			if pos := strings.IndexByte(line, ':'); pos >= 0 {
				if v, err := strconv.ParseFloat(strings.TrimSpace(line[pos+1:]), 64); err == nil {
					mhz = v
					haveMHz = true
				}
			}
		}
	}
	return mhz, haveMHz
}

func evaluateIrqAffinityDefaultAvoidsRt(ctx Context, ds DataSource) Result {
	const name = "irqaffinity excludes RT core"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	v, ok := ds.CmdlineParam("irqaffinity")
	if !ok {
		return unknown(name, "no irqaffinity kernel param")
	}
	set := ParseCPUList(v)
	if len(set) == 0 {
		return unknown(name, "empty list")
	}
	if _, inSet := set[cpu]; inSet {
		return fail(name, "RT core present in irqaffinity: "+v)
	}
	return pass(name, v)
}

func evaluateNoUnrelatedIrqsOnRt(ctx Context, ds DataSource) Result {
	const name = "No unrelated IRQs on RT core"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	content, ok := ds.Read("/proc/interrupts")
	if !ok {
		return unknown(name, "cannot read /proc/interrupts")
	}

	nicFilter, _ := ctx.nic()

	cpuColumn, offenders := scanInterrupts(content, cpu, nicFilter)
	if cpuColumn < 0 {
		return unknown(name, "could not map CPU column")
	}
	if len(offenders) == 0 {
		return pass(name, "clean")
	}

	shown := offenders
	var suffix string
	if len(offenders) > maxIrqsToShow {
		shown = offenders[:maxIrqsToShow]
		suffix = fmt.Sprintf(", +%d more", len(offenders)-maxIrqsToShow)
	}
	return fail(name, strings.Join(shown, ", ")+suffix)
}

// scanInterrupts parses /proc/interrupts' ragged header to find the
// column for cpu, then flags any data row whose value in that column
// is nonzero and whose label does not mention nicFilter.
func scanInterrupts(content string, cpu int, nicFilter string) (cpuColumn int, offenders []string) {
	cpuColumn = -1
	headerDone := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !headerDone {
			if strings.Contains(line, "CPU0") {
				index := -1
				for _, col := range strings.Fields(line) {
					if strings.HasPrefix(col, "CPU") {
						index++
						if col[3:] == strconv.Itoa(cpu) {
							cpuColumn = index
						}
					}
				}
				headerDone = true
			}
			continue
		}

		pos := 0
		for pos < len(line) && (line[pos] == ' ' || line[pos] == '\t') {
			pos++
		}
		if pos >= len(line) || line[pos] < '0' || line[pos] > '9' {
			continue
		}
		colon := strings.IndexByte(line[pos:], ':')
		if colon < 0 {
			continue
		}
		colon += pos
		irqNumber := line[pos:colon]

		fields := strings.Fields(line[colon+1:])
		valueAtRTCore := int64(0)
		index := -1
		label := ""
		for i, tok := range fields {
			if isAllDigits(tok) {
				index++
				if index == cpuColumn {
					if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
						valueAtRTCore = v
					}
				}
				continue
			}
			label = strings.Join(fields[i:], " ")
			break
		}

		if label == "" {
			if valueAtRTCore > 0 {
				offenders = append(offenders, irqNumber+" (unlabeled)")
			}
			continue
		}
		if valueAtRTCore > 0 && (nicFilter == "" || !strings.Contains(label, nicFilter)) {
			offenders = append(offenders, irqNumber+" "+strings.TrimSpace(label))
		}
	}

	return cpuColumn, offenders
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func evaluateSmtSiblingIsolated(ctx Context, ds DataSource) Result {
	const name = "SMT sibling isolated/disabled"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}

	v, ok := ds.Read(fmt.Sprintf("/sys/devices/system/cpu/cpu%d/topology/thread_siblings_list", cpu))
	if !ok {
		return unknown(name, "no thread_siblings_list")
	}
	siblings := ParseCPUList(v)
	delete(siblings, cpu)
	if len(siblings) == 0 {
		return pass(name, "no sibling")
	}

	isolatedRaw, ok := ds.Read("/sys/devices/system/cpu/isolated")
	if !ok {
		return unknown(name, "cannot read isolated")
	}
	isolated := ParseCPUList(isolatedRaw)
	for sibling := range siblings {
		if _, ok := isolated[sibling]; !ok {
			return fail(name, fmt.Sprintf("sibling CPU%d not isolated", sibling))
		}
	}
	return pass(name, "siblings all isolated")
}

func evaluateCStatesCapped(_ Context, ds DataSource) Result {
	const name = "Deep C-states capped"

	if cmdline, ok := ds.Read("/proc/cmdline"); ok {
		if strings.Contains(cmdline, "cpuidle.off=1") {
			return pass(name, "cpuidle.off=1")
		}
		if strings.Contains(cmdline, "intel_idle.max_cstate=1") || strings.Contains(cmdline, "processor.max_cstate=1") {
			return pass(name, "cmdline caps to C1")
		}
	}
	if v, ok := ds.Read("/sys/module/intel_idle/parameters/max_cstate"); ok {
		value := strings.TrimSpace(v)
		if value == "1" || value == "0" {
			return pass(name, "intel_idle.max_cstate="+value)
		}
		return fail(name, "intel_idle.max_cstate="+value)
	}
	if v, ok := ds.Read("/sys/module/processor/parameters/max_cstate"); ok {
		value := strings.TrimSpace(v)
		if value == "1" || value == "0" {
			return pass(name, "processor.max_cstate="+value)
		}
		return fail(name, "processor.max_cstate="+value)
	}
	return unknown(name, "no indicators")
}

func evaluateTurboPolicy(_ Context, ds DataSource) Result {
	const name = "Turbo/boost disabled"

	if v, ok := ds.Read("/sys/devices/system/cpu/cpufreq/boost"); ok {
		value := strings.TrimSpace(v)
		if value == "0" {
			return pass(name, "cpufreq/boost=0")
		}
		if value == "1" {
			return fail(name, "cpufreq/boost=1")
		}
	}
	if v, ok := ds.Read("/sys/devices/system/cpu/intel_pstate/no_turbo"); ok {
		value := strings.TrimSpace(v)
		if value == "1" {
			return pass(name, "intel_pstate/no_turbo=1")
		}
		if value == "0" {
			return fail(name, "intel_pstate/no_turbo=0")
		}
	}
	return unknown(name, "no boost knobs")
}

func evaluateNicPresent(ctx Context, ds DataSource) Result {
	const name = "NIC interface present"

	nic, ok, res := needNIC(ctx, name)
	if !ok {
		return res
	}
	if nicExists(ds, nic) {
		return pass(name, "exists")
	}
	return unknown(name, "interface not found")
}

func evaluateNicLinkUp(ctx Context, ds DataSource) Result {
	const name = "NIC link is UP"

	nic, ok, res := needNIC(ctx, name)
	if !ok {
		return res
	}
	if !nicExists(ds, nic) {
		return unknown(name, "NIC not found")
	}

	if v, ok := ds.Read(fmt.Sprintf("/sys/class/net/%s/operstate", nic)); ok {
		value := strings.TrimSpace(v)
		if value == "up" {
			return pass(name, "operstate=up")
		}
		if value != "" {
			return fail(name, "operstate="+value)
		}
	}
	if v, ok := ds.Read(fmt.Sprintf("/sys/class/net/%s/carrier", nic)); ok {
		value := strings.TrimSpace(v)
		if value == "1" {
			return pass(name, "carrier=1")
		}
		if value == "0" {
			return fail(name, "carrier=0")
		}
	}
	return unknown(name, "no operstate/carrier")
}

func evaluateNicQuiet(ctx Context, ds DataSource) Result {
	const name = "NIC is quiet"

	nic, ok, res := needNIC(ctx, name)
	if !ok {
		return res
	}
	if !nicExists(ds, nic) {
		return unknown(name, "NIC not found")
	}

	ipv4Count, ipv6Count, addrKnown := countNicAddresses(nic)
	hasDefaultV4 := defaultRouteV4ViaNIC(ds, nic)
	hasDefaultV6 := defaultRouteV6ViaNIC(ds, nic)

	if addrKnown && ipv4Count == 0 && ipv6Count == 0 && !hasDefaultV4 && !hasDefaultV6 {
		return pass(name, "no IPs, no default route")
	}

	var detail string
	if !addrKnown {
		detail = "addr=?"
	} else {
		detail = fmt.Sprintf("v4=%d, v6=%d", ipv4Count, ipv6Count)
	}
	detail += fmt.Sprintf(", def4=%s, def6=%s", yesNo(hasDefaultV4), yesNo(hasDefaultV6))

	if !addrKnown {
		return unknown(name, detail)
	}
	return fail(name, detail)
}

func defaultRouteV4ViaNIC(ds DataSource, nic string) bool {
	content, ok := ds.Read("/proc/net/route")
	if !ok {
		return false
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == nic && fields[1] == "00000000" {
			return true
		}
	}
	return false
}

func defaultRouteV6ViaNIC(ds DataSource, nic string) bool {
	content, ok := ds.Read("/proc/net/ipv6_route")
	if !ok {
		return false
	}
	zeros := strings.Repeat("0", 32)
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		dest := fields[0]
		prefixLen := fields[1]
		device := fields[len(fields)-1]
		if dest == zeros && (prefixLen == "0" || prefixLen == "00000000") && device == nic {
			return true
		}
	}
	return false
}

func evaluateNicIrqsPinned(ctx Context, ds DataSource) Result {
	const name = "NIC IRQs pinned to RT core"

	cpu, ok, res := needCPU(ctx, name)
	if !ok {
		return res
	}
	nic, ok, res := needNIC(ctx, name)
	if !ok {
		return res
	}
	if !nicExists(ds, nic) {
		return unknown(name, "NIC not found")
	}

	content, ok := ds.Read("/proc/interrupts")
	if !ok {
		return unknown(name, "cannot read /proc/interrupts")
	}

	var nicIrqs []string
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, nic) {
			continue
		}
		pos := 0
		for pos < len(line) && (line[pos] == ' ' || line[pos] == '\t') {
			pos++
		}
		if pos >= len(line) || line[pos] < '0' || line[pos] > '9' {
			continue
		}
		colon := strings.IndexByte(line[pos:], ':')
		if colon < 0 {
			continue
		}
		nicIrqs = append(nicIrqs, line[pos:pos+colon])
	}
	if len(nicIrqs) == 0 {
		return unknown(name, "no NIC IRQs seen")
	}

	var badIrqs []string
	for _, irq := range nicIrqs {
		v, ok := ds.Read("/proc/irq/" + irq + "/smp_affinity_list")
		if !ok {
			return unknown(name, "cannot read smp_affinity_list for IRQ "+irq)
		}
		set := ParseCPUList(v)
		if _, onlyRT := set[cpu]; len(set) != 1 || !onlyRT {
			badIrqs = append(badIrqs, irq)
		}
	}
	if len(badIrqs) == 0 {
		return pass(name, fmt.Sprintf("all pinned to CPU%d", cpu))
	}
	return fail(name, "not pinned: "+strings.Join(badIrqs, ","))
}

func evaluateRpsDisabled(ctx Context, ds DataSource) Result {
	const name = "RPS disabled on NIC"

	nic, ok, res := needNIC(ctx, name)
	if !ok {
		return res
	}
	if !nicExists(ds, nic) {
		return unknown(name, "NIC not found")
	}

	queueDir := fmt.Sprintf("/sys/class/net/%s/queues", nic)
	entries, ok := ds.List(queueDir)
	if !ok {
		return unknown(name, "no queues dir")
	}

	checked := 0
	anyBad := false
	for _, entry := range entries {
		if !strings.HasPrefix(entry, "rx-") {
			continue
		}
		path := queueDir + "/" + entry + "/rps_cpus"
		v, ok := ds.Read(path)
		if !ok {
			return unknown(name, "cannot read "+path)
		}
		if !isAllZeroMask(v) {
			anyBad = true
		}
		checked++
	}

	if checked == 0 {
		return unknown(name, "no rx/tx queues found")
	}
	if !anyBad {
		return pass(name, "all zero masks")
	}
	return fail(name, "non-zero masks present")
}

func isAllZeroMask(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	for _, c := range trimmed {
		if c == ',' || c == '\n' || c == ' ' || c == '\t' {
			continue
		}
		if c != '0' {
			return false
		}
	}
	return true
}

func readInt64(ds DataSource, path string) (int64, bool) {
	v, ok := ds.Read(path)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func optionalKHz(v int64, ok bool) string {
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%d kHz", v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// countNicAddresses reports how many IPv4 and IPv6 addresses are
// bound to nic and whether the host's address table could be read at
// all. This is the one Check that consults the live network stack
// directly rather than the DataSource: no pseudo-file exposes bound
// IP addresses, mirroring the original's getifaddrs call.
func countNicAddresses(nic string) (ipv4, ipv6 int, known bool) {
	iface, err := net.InterfaceByName(nic)
	if err != nil {
		return 0, 0, false
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return 0, 0, false
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.To4() != nil {
			ipv4++
		} else {
			ipv6++
		}
	}
	return ipv4, ipv6, true
}
