package registration

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.OverlapEstimate = 0.8
	test.That(t, opts.Validate(4), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(o *Options)
	}{
		{"zero overlap", func(o *Options) { o.OverlapEstimate = 0 }},
		{"negative overlap", func(o *Options) { o.OverlapEstimate = -0.5 }},
		{"overlap above one", func(o *Options) { o.OverlapEstimate = 1.5 }},
		{"zero delta", func(o *Options) { o.Delta = 0 }},
		{"sample size too small", func(o *Options) { o.SampleSize = 4 }},
		{"negative terminate threshold", func(o *Options) { o.TerminateThreshold = -0.1 }},
		{"terminate threshold above one", func(o *Options) { o.TerminateThreshold = 1.1 }},
		{"bad confidence", func(o *Options) { o.Confidence = 1 }},
		{"negative trial budget", func(o *Options) { o.MaxTrials = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bad := DefaultOptions()
			bad.OverlapEstimate = 0.8
			tc.mutate(&bad)
			err := bad.Validate(4)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
		})
	}

	// An explicit trial budget makes the confidence irrelevant.
	opts = DefaultOptions()
	opts.OverlapEstimate = 0.8
	opts.Confidence = 0
	opts.MaxTrials = 50
	test.That(t, opts.Validate(4), test.ShouldBeNil)
}

func TestTrialBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.OverlapEstimate = 1
	test.That(t, opts.trialBudget(4), test.ShouldEqual, minTrialBudget)

	opts.MaxTrials = 7
	test.That(t, opts.trialBudget(4), test.ShouldEqual, 7)

	// Lower overlap buys more trials.
	opts.MaxTrials = 0
	opts.OverlapEstimate = 0.5
	mid := opts.trialBudget(4)
	opts.OverlapEstimate = 0.3
	low := opts.trialBudget(4)
	test.That(t, mid, test.ShouldBeGreaterThan, minTrialBudget)
	test.That(t, low, test.ShouldBeGreaterThan, mid)
	test.That(t, low, test.ShouldBeLessThanOrEqualTo, maxTrialBudget)

	// Tiny overlap clamps at the cap.
	opts.OverlapEstimate = 0.01
	test.That(t, opts.trialBudget(4), test.ShouldEqual, maxTrialBudget)
}
