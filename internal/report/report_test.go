package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesAutomaticBucketWidth(t *testing.T) {
	r := New("Cyclic", 1_000_000, 0)
	snap := r.Snapshot()
	assert.Equal(t, uint64(125_000), snap.BucketWidthNS)
}

func TestAddObservationUpdatesMaxOnAbsolutePeriodNotDeviation(t *testing.T) {
	r := New("Cyclic", 1_000_000, 100_000)

	r.AddObservation(1_010_000, 1) // dev = 10_000, period = 1_010_000
	r.AddObservation(990_000, 2)   // dev = 10_000, period = 990_000 (smaller period, same dev)

	snap := r.Snapshot()
	require.Equal(t, uint64(1_010_000), snap.MaxValueNS)
	assert.Equal(t, uint64(1), snap.MaxIndex)
}

func TestAddObservationSaturatesDeviationAtZero(t *testing.T) {
	r := New("Cyclic", 1_000_000, 100_000)
	r.AddObservation(1_000_000, 0)

	snap := r.Snapshot()
	require.Equal(t, uint64(1), snap.Samples)
	assert.Equal(t, uint64(1), snap.BucketCounts[0]) // zero deviation falls in Great
}

func TestSnapshotBucketCountsSumToSamples(t *testing.T) {
	r := New("Cyclic", 1_000_000, 100_000)
	for i := uint64(0); i < 50; i++ {
		r.AddObservation(1_000_000+i*10_000, i)
	}

	snap := r.Snapshot()
	var total uint64
	for _, c := range snap.BucketCounts {
		total += c
	}
	assert.Equal(t, snap.Samples, total)
}

func TestSnapshotLabelAndTargetCarryThrough(t *testing.T) {
	r := New("Sender", 500_000, 50_000)
	snap := r.Snapshot()
	assert.Equal(t, "Sender", snap.Label)
	assert.Equal(t, "Sender", r.Label())
	assert.Equal(t, uint64(500_000), snap.TargetPeriodNS)
}
