package sysrt

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLatencyTargetIsSafeToCloseWhenDeviceIsAbsent(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	lt := OpenLatencyTarget(log)
	require.NotNil(t, lt)
	assert.NoError(t, lt.Close())
}

func TestLatencyTargetCloseIsIdempotentOnZeroValue(t *testing.T) {
	var lt LatencyTarget
	assert.NoError(t, lt.Close())
	assert.NoError(t, lt.Close())
}

func TestWriteTraceMarkerReturnsErrorWhenNoTracingMountIsPresent(t *testing.T) {
	// The test environment has neither tracefs nor debugfs mounted at
	// the conventional paths, so every candidate path fails to open and
	// WriteTraceMarker surfaces that as an error rather than panicking
	// or silently succeeding.
	err := WriteTraceMarker("rtcat: test event")
	assert.Error(t, err)
}
