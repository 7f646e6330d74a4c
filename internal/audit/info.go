package audit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HostInfo is the metadata banner printed once before the grouped
// check sections. It never produces Pass/Fail/Unknown and is not part
// of the testable predicate surface.
type HostInfo struct {
	Hostname string
	OS       string
	Kernel   string
	CPUInfo  string
}

// GatherHostInfo reads the host banner fields through ds, the same
// DataSource every Check reads through.
func GatherHostInfo(ds DataSource) HostInfo {
	return HostInfo{
		Hostname: hostname(ds),
		OS:       osInfo(ds),
		Kernel:   kernelInfo(ds),
		CPUInfo:  cpuInfo(ds),
	}
}

func hostname(ds DataSource) string {
	if v, ok := ds.Read("uname.nodename"); ok && v != "" {
		return v
	}
	return "unknown"
}

func kernelInfo(ds DataSource) string {
	sysname, _ := ds.Read("uname.sysname")
	release, _ := ds.Read("uname.release")
	version, _ := ds.Read("uname.version")
	machine, _ := ds.Read("uname.machine")
	return strings.TrimSpace(fmt.Sprintf("%s %s %s %s", sysname, release, version, machine))
}

func osInfo(ds DataSource) string {
	content, ok := ds.Read("/etc/os-release")
	if !ok {
		return "unknown"
	}

	var name, version string
	for _, line := range strings.Split(content, "\n") {
		if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return unquote(v)
		}
		if v, ok := strings.CutPrefix(line, "NAME="); ok {
			name = unquote(v)
		}
		if v, ok := strings.CutPrefix(line, "VERSION="); ok {
			version = unquote(v)
		}
	}

	if name == "" {
		return "unknown"
	}
	if version == "" {
		return name
	}
	return name + " " + version
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// cpuInfo summarizes the CPU model and topology: logical count,
// deduplicated physical-core count, and a P-core/E-core split when the
// kernel exposes hybrid core types.
func cpuInfo(ds DataSource) string {
	model := cpuModel(ds)
	online := onlineCPUCount(ds)

	out := "CPU: " + model
	if online <= 0 {
		return out
	}

	type pkgCore struct{ pkg, core int }
	physical := make(map[pkgCore]struct{})
	performance, efficiency, anyTyped := 0, 0, false

	entries, ok := ds.List("/sys/devices/system/cpu")
	if ok {
		for _, entry := range entries {
			if !strings.HasPrefix(entry, "cpu") || !isAllDigits(entry[3:]) {
				continue
			}
			base := "/sys/devices/system/cpu/" + entry + "/topology/"
			coreID, okCore := ds.Read(base + "core_id")
			pkgID, okPkg := ds.Read(base + "physical_package_id")
			if okCore && okPkg {
				c, errC := strconv.Atoi(strings.TrimSpace(coreID))
				p, errP := strconv.Atoi(strings.TrimSpace(pkgID))
				if errC == nil && errP == nil {
					physical[pkgCore{p, c}] = struct{}{}
				}
			}

			if typeValue, ok := ds.Read(base + "core_type"); ok {
				anyTyped = true
				t := strings.ToLower(strings.TrimSpace(typeValue))
				if strings.Contains(t, "perf") || t == "core" {
					performance++
				} else if strings.Contains(t, "eff") || t == "atom" {
					efficiency++
				}
			}
		}
	}

	out += fmt.Sprintf(" (%d logical", online)
	if len(physical) > 0 {
		out += fmt.Sprintf(", %d physical", len(physical))
	}
	if anyTyped && (performance+efficiency) > 0 {
		out += fmt.Sprintf("; P=%d, E=%d", performance, efficiency)
	}
	out += ")"
	return out
}

func cpuModel(ds DataSource) string {
	if cpuinfo, ok := ds.Read("/proc/cpuinfo"); ok {
		for _, key := range []string{"model name", "Hardware", "Processor", "cpu model"} {
			for _, line := range strings.Split(cpuinfo, "\n") {
				if strings.HasPrefix(line, key) {
					if pos := strings.IndexByte(line, ':'); pos >= 0 {
						if v := strings.TrimSpace(line[pos+1:]); v != "" {
							return v
						}
					}
				}
			}
		}
	}
	if machine, ok := ds.Read("uname.machine"); ok && machine != "" {
		return machine
	}
	return "Unknown CPU"
}

func onlineCPUCount(ds DataSource) int {
	entries, ok := ds.List("/sys/devices/system/cpu")
	if !ok {
		return 0
	}
	ids := make([]int, 0, len(entries))
	for _, name := range entries {
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		if n, err := strconv.Atoi(name[3:]); err == nil {
			ids = append(ids, n)
		}
	}
	sort.Ints(ids)
	return len(ids)
}
