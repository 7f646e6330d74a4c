package audit

import (
	"strconv"
	"strings"
)

// ParseCPUList parses the kernel's comma/range CPU-list grammar:
// list := item ("," item)*, item := int | int "-" int. Malformed
// tokens are silently skipped; an inverted range a-b with a > b is
// accepted and normalized.
func ParseCPUList(s string) map[int]struct{} {
	out := make(map[int]struct{})
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return out
	}

	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if dash := strings.IndexByte(token, '-'); dash >= 0 {
			start, errStart := strconv.Atoi(strings.TrimSpace(token[:dash]))
			end, errEnd := strconv.Atoi(strings.TrimSpace(token[dash+1:]))
			if errStart != nil || errEnd != nil {
				continue
			}
			if start > end {
				start, end = end, start
			}
			for i := start; i <= end; i++ {
				out[i] = struct{}{}
			}
			continue
		}

		v, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		out[v] = struct{}{}
	}

	return out
}

func cpuListContains(s string, cpu int) bool {
	set := ParseCPUList(s)
	_, ok := set[cpu]
	return ok
}
