// Package report implements the Timer Report: a Timer Report wraps one
// Estimator with the target period and derives the severity bucket
// edges from it, per SPEC_FULL.md §4.2.
package report

import (
	"sync"

	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
	"github.com/rsi-robotics/rtcat-eval/internal/estimator"
)

// BucketLabels names the five canonical severity bands, in ascending
// order of deviation from target.
var BucketLabels = []string{"Great", "Good", "Poor", "Bad", "Pathetic"}

// Edges returns the five canonical deviation-from-target bucket edges
// for a target period T and bucket width W. When W == T/8 (the
// default), these reduce to T/8, T/4, T/2, T, and an unbounded band.
func Edges(bucketWidth uint64) []uint64 {
	return []uint64{
		0,
		bucketWidth,
		bucketWidth * 2,
		bucketWidth * 4,
		bucketWidth * 8,
	}
}

// Report owns one Estimator, the target period, and the running
// maximum absolute period observed. It is written exclusively by its
// owning measurement thread; AddObservation and Snapshot both take the
// Report's own mutex, so live snapshots may be read while that thread
// is still running.
type Report struct {
	mu sync.Mutex

	label          string
	targetPeriodNS uint64
	bucketWidthNS  uint64
	digest         *estimator.Digest

	maxPeriodValue uint64
	maxPeriodIndex uint64
}

// New constructs a Report for the given label, target period, and
// bucket width (both in nanoseconds). A bucketWidth of zero selects
// the automatic T/8 default.
func New(label string, targetPeriodNS uint64, bucketWidthNS uint64) *Report {
	if bucketWidthNS == 0 {
		bucketWidthNS = targetPeriodNS / 8
	}
	return &Report{
		label:          label,
		targetPeriodNS: targetPeriodNS,
		bucketWidthNS:  bucketWidthNS,
		digest:         estimator.New(estimator.DefaultCapacity, Edges(bucketWidthNS)),
	}
}

// AddObservation computes the deviation of sample from the target
// period, saturating at zero, records it into the estimator tagged
// with index, and updates the running maximum using the absolute
// period (not the deviation).
func (r *Report) AddObservation(sample uint64, index uint64) {
	dev := deviation(sample, r.targetPeriodNS)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.digest.Record(dev, index)

	if sample > r.maxPeriodValue {
		r.maxPeriodValue = sample
		r.maxPeriodIndex = index
	}
}

func deviation(sample, target uint64) uint64 {
	if sample > target {
		return sample - target
	}
	return target - sample
}

// Snapshot takes a consistent read of the report's current state,
// taking both fields of the running maximum under the same lock
// acquisition to avoid observing a torn max (SPEC_FULL.md §5).
func (r *Report) Snapshot() rtv1.PeriodSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var counts []uint64
	for i := 0; i < r.digest.BucketCount(); i++ {
		counts = append(counts, r.digest.CountInBucket(i))
	}

	return rtv1.PeriodSnapshot{
		Label:          r.label,
		TargetPeriodNS: r.targetPeriodNS,
		BucketWidthNS:  r.bucketWidthNS,
		Samples:        r.digest.SampleCount(),
		BucketLabels:   append([]string(nil), BucketLabels...),
		BucketCounts:   counts,
		P50:            r.digest.Quantile(0.5),
		P90:            r.digest.Quantile(0.9),
		P99:            r.digest.Quantile(0.99),
		MaxValueNS:     r.maxPeriodValue,
		MaxIndex:       r.maxPeriodIndex,
	}
}

// Label returns the report's display label.
func (r *Report) Label() string { return r.label }
