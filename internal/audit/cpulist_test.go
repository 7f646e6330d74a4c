package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCPUListRangesAndSingles(t *testing.T) {
	set := ParseCPUList("1-3,5,7-8")
	require.Equal(t, map[int]struct{}{
		1: {}, 2: {}, 3: {}, 5: {}, 7: {}, 8: {},
	}, set)
}

func TestParseCPUListNormalizesInvertedRange(t *testing.T) {
	set := ParseCPUList("3-1")
	require.Equal(t, map[int]struct{}{1: {}, 2: {}, 3: {}}, set)
}

func TestParseCPUListEmptyStringYieldsEmptySet(t *testing.T) {
	set := ParseCPUList("")
	require.Empty(t, set)
}

func TestParseCPUListSkipsMalformedTokens(t *testing.T) {
	set := ParseCPUList("1,x,3-,4")
	require.Equal(t, map[int]struct{}{1: {}, 4: {}}, set)
}

func TestCpuListContains(t *testing.T) {
	require.True(t, cpuListContains("1-3,5", 2))
	require.False(t, cpuListContains("1-3,5", 4))
}
