package registration

import (
	"math"

	"github.com/pkg/errors"

	"github.com/viam-labs/fourpcs/utils"
)

// Options configures a registration run.
type Options struct {
	// OverlapEstimate is the expected fraction of the reference cloud that has
	// a true correspondence in the target cloud. Required, in (0, 1].
	OverlapEstimate float64

	// Delta is the distance tolerance in units of the reference cloud's mean
	// nearest neighbor distance. It gates both congruent set extraction and
	// the inlier test during verification.
	Delta float64

	// MaxAngle constrains the rotation of accepted transforms, in radians.
	// Zero or negative means unconstrained.
	MaxAngle float64

	// SampleSize caps the size of the working copies of both clouds.
	SampleSize int

	// TerminateThreshold stops the search early once the best LCP reaches it.
	TerminateThreshold float64

	// Confidence sizes the trial budget together with OverlapEstimate when
	// MaxTrials is zero.
	Confidence float64

	// MaxTrials overrides the derived trial budget when positive.
	MaxTrials int

	// EstimateScale enables recovery of a uniform scale factor.
	EstimateScale bool

	// MaxNormalDifference, when positive and both clouds carry normals, gates
	// verification inliers by the angle (radians) between their normals.
	MaxNormalDifference float64

	// MaxColorDistance, when positive and both clouds carry colors, gates
	// verification inliers by Euclidean RGB distance.
	MaxColorDistance float64

	// Threads sets the verification worker count. Zero or negative selects
	// utils.ParallelFactor.
	Threads int

	// Seed seeds the run's random generator.
	Seed int64
}

// DefaultOptions returns options that work for roughly unit scale clouds. The
// overlap estimate must still be set by the caller.
func DefaultOptions() Options {
	return Options{
		Delta:              2.0,
		SampleSize:         200,
		TerminateThreshold: 1.0,
		Confidence:         0.99,
		Seed:               1,
	}
}

// Validate surfaces configuration errors before any trial runs. baseSize is
// the number of points per base of the configured algorithm variant.
func (o Options) Validate(baseSize int) error {
	if o.OverlapEstimate <= 0 || o.OverlapEstimate > 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "overlap estimate %f not in (0, 1]", o.OverlapEstimate)
	}
	if o.Delta <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "delta %f must be positive", o.Delta)
	}
	if o.SampleSize <= baseSize {
		return errors.Wrapf(ErrInvalidConfiguration, "sample size %d must exceed the base size %d", o.SampleSize, baseSize)
	}
	if o.TerminateThreshold < 0 || o.TerminateThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "terminate threshold %f not in [0, 1]", o.TerminateThreshold)
	}
	if o.MaxTrials == 0 && (o.Confidence <= 0 || o.Confidence >= 1) {
		return errors.Wrapf(ErrInvalidConfiguration, "confidence %f not in (0, 1)", o.Confidence)
	}
	if o.MaxTrials < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "trial budget %d must not be negative", o.MaxTrials)
	}
	return nil
}

// trialBudget derives the number of RANSAC trials from the overlap estimate
// and desired confidence: the probability that at least one trial draws a base
// made entirely of overlap points. Smaller expected overlap buys more trials.
func (o Options) trialBudget(baseSize int) int {
	if o.MaxTrials > 0 {
		return o.MaxTrials
	}
	pBase := math.Pow(o.OverlapEstimate, float64(baseSize))
	if pBase >= 1 {
		return minTrialBudget
	}
	n := int(math.Ceil(math.Log(1-o.Confidence) / math.Log(1-pBase)))
	return utils.MaxInt(utils.MinInt(n, maxTrialBudget), minTrialBudget)
}

const (
	minTrialBudget = 20
	maxTrialBudget = 10000
)
