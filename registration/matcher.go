package registration

import (
	"context"
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/fourpcs/pointcloud"
	"github.com/viam-labs/fourpcs/utils"
)

const (
	// kNumberOfDiameterTrials bounds how many random draws the base selector
	// makes before giving up on the current trial.
	kNumberOfDiameterTrials = 1000

	// distanceFactor widens the pair extraction tolerance relative to the
	// verification inlier threshold.
	distanceFactor = 2.0

	// meanDistanceSubset caps how many points the mean nearest neighbor
	// distance estimate touches.
	meanDistanceSubset = 100

	// minTriangleAngleSine rejects near collinear triangles.
	minTriangleAngleSine = 0.1
)

// Matcher approximates the best LCP (directional, from Q to P) over rigid
// transformations and the transform realizing it. The outer RANSAC loop is
// single threaded; only verification fans out over workers.
type Matcher struct {
	opts   Options
	gen    CongruentSetGenerator
	logger golog.Logger

	// Fixed after Initialize.
	sampledP, sampledQ []r3.Vector
	dataP, dataQ       []pointcloud.Data
	centroidP          r3.Vector
	centroidQ          r3.Vector
	guess              *Transform
	kdTree             *pointcloud.KDTree
	pDiameter          float64
	pMeanDistance      float64
	maxBaseDiameter    float64
	inlierThreshold    float64
	numTrials          int
	rng                *rand.Rand
	initialized        bool

	// Mutated by the controller thread only, between trials.
	currentTrial int
	bestLCP      float64
	best         *Transform
}

// New returns a matcher using the 4-point (4PCS) congruent set generator.
func New(opts Options, logger golog.Logger) *Matcher {
	return NewWithGenerator(NewFourPointGenerator(), opts, logger)
}

// NewWithGenerator returns a matcher driven by the given algorithm variant.
func NewWithGenerator(gen CongruentSetGenerator, opts Options, logger golog.Logger) *Matcher {
	return &Matcher{opts: opts, gen: gen, logger: logger}
}

// FirstSampled returns the sampled, centered working copy of the reference
// cloud used for the registration.
func (m *Matcher) FirstSampled() []r3.Vector { return m.sampledP }

// SecondSampled returns the sampled, centered working copy of the target
// cloud used for the registration.
func (m *Matcher) SecondSampled() []r3.Vector { return m.sampledQ }

// BestLCP returns the best LCP fraction found so far.
func (m *Matcher) BestLCP() float64 { return m.bestLCP }

// BestTransform returns the best global transform found so far, mapping the
// original target cloud onto the reference cloud.
func (m *Matcher) BestTransform() *Transform { return m.globalTransform() }

// NumTrials returns the configured trial budget.
func (m *Matcher) NumTrials() int { return m.numTrials }

// CurrentTrial returns the number of completed trials.
func (m *Matcher) CurrentTrial() int { return m.currentTrial }

// ComputeTransformation runs the full registration: it samples both clouds,
// runs RANSAC trials until the termination criterion fires, applies the best
// transform found to every point of Q in place, and returns the best LCP.
// The initial guess seeds the search as-is; pass nil for identity.
func (m *Matcher) ComputeTransformation(
	ctx context.Context,
	p, q pointcloud.PointCloud,
	guess *Transform,
	sampler pointcloud.Sampler,
	visitor TransformVisitor,
) (float64, error) {
	if err := m.Initialize(p, q, guess, sampler); err != nil {
		return 0, err
	}
	if _, err := m.PerformNSteps(ctx, m.numTrials, visitor); err != nil {
		return 0, err
	}

	final := m.globalTransform()
	for i := 0; i < q.Size(); i++ {
		pos, _ := q.At(i)
		q.SetAt(i, final.Apply(pos))
	}
	m.logger.Debugw("registration finished",
		"lcp", m.bestLCP, "trials", m.currentTrial, "rms", final.RMS)
	return m.bestLCP, nil
}

// Initialize prepares a run: samples both clouds, computes the diameter and
// mean distance statistics of P, builds the spatial index, derives tolerances
// and the trial budget, and scores the initial guess. Fatal precondition
// violations surface here, before any trial runs.
func (m *Matcher) Initialize(p, q pointcloud.PointCloud, guess *Transform, sampler pointcloud.Sampler) error {
	baseSize := m.gen.BaseSize()
	if err := m.opts.Validate(baseSize); err != nil {
		return err
	}
	if p == nil || q == nil || p.Size() == 0 || q.Size() == 0 {
		return ErrEmptyInputCloud
	}
	if p.Size() < baseSize || q.Size() < baseSize {
		return errors.Wrapf(ErrInvalidConfiguration,
			"need at least %d points per cloud, got %d and %d", baseSize, p.Size(), q.Size())
	}
	if sampler == nil {
		sampler = pointcloud.UniformSampler{}
	}
	if guess == nil {
		guess = IdentityTransform()
	}
	m.guess = guess
	m.rng = rand.New(rand.NewSource(m.opts.Seed))

	sampledP, err := sampler.Sample(p, m.opts.SampleSize, m.rng)
	if err != nil {
		return err
	}
	sampledQ, err := sampler.Sample(q, m.opts.SampleSize, m.rng)
	if err != nil {
		return err
	}
	if sampledP.Size() < baseSize || sampledQ.Size() < baseSize {
		return errors.Wrapf(ErrInvalidConfiguration,
			"sampling left fewer than %d points", baseSize)
	}

	m.sampledP, m.dataP = cloudToSlices(sampledP)
	m.sampledQ, m.dataQ = cloudToSlices(sampledQ)

	// Seed the search with the guess, then center both working copies on
	// their centroids. Centering keeps the per-candidate fits and the final
	// composition numerically well behaved.
	for i := range m.sampledQ {
		m.sampledQ[i] = guess.Apply(m.sampledQ[i])
	}
	m.centroidP = centroidOf(m.sampledP)
	m.centroidQ = centroidOf(m.sampledQ)
	for i := range m.sampledP {
		m.sampledP[i] = m.sampledP[i].Sub(m.centroidP)
	}
	for i := range m.sampledQ {
		m.sampledQ[i] = m.sampledQ[i].Sub(m.centroidQ)
	}

	meta := sampledP.MetaData()
	m.pDiameter = meta.DiagonalLength()
	if m.pDiameter == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "reference cloud has zero extent")
	}
	m.kdTree = pointcloud.NewKDTree(m.sampledP)
	m.pMeanDistance = m.meanDistance()
	m.maxBaseDiameter = m.pDiameter * m.opts.OverlapEstimate
	m.inlierThreshold = m.opts.Delta * m.pMeanDistance
	m.numTrials = m.opts.trialBudget(baseSize)

	if err := m.gen.Initialize(m.sampledQ, GeneratorParams{
		DistanceTolerance:  distanceFactor * m.inlierThreshold,
		InvariantTolerance: m.opts.Delta,
	}); err != nil {
		return err
	}

	m.currentTrial = 0
	m.best = IdentityTransform()
	m.bestLCP = m.verify(m.best)
	m.initialized = true

	m.logger.Debugw("registration initialized",
		"sampledP", len(m.sampledP), "sampledQ", len(m.sampledQ),
		"diameter", m.pDiameter, "meanDistance", m.pMeanDistance,
		"inlierThreshold", m.inlierThreshold, "trialBudget", m.numTrials,
		"guessLCP", m.bestLCP)
	return nil
}

// PerformNSteps runs up to n RANSAC trials and reports whether the run is
// done: either the target LCP was reached or the trial budget is exhausted.
// Callers may interleave chunks with progress reporting or cancellation.
func (m *Matcher) PerformNSteps(ctx context.Context, n int, visitor TransformVisitor) (bool, error) {
	if !m.initialized {
		return false, errors.New("matcher is not initialized")
	}
	for i := 0; i < n && m.currentTrial < m.numTrials; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		// The initial guess may already satisfy the caller.
		if m.bestLCP >= m.opts.TerminateThreshold {
			return true, nil
		}
		m.tryOneBase()
		m.currentTrial++

		if visitor != nil {
			progress := float64(m.currentTrial) / float64(m.numTrials)
			reported := m.best
			if visitor.NeedsGlobalTransform() {
				reported = m.globalTransform()
			}
			visitor.Visit(m.bestLCP, progress, reported)
		}
		if m.bestLCP >= m.opts.TerminateThreshold {
			return true, nil
		}
	}
	return m.currentTrial >= m.numTrials, nil
}

// tryOneBase performs a single trial: select a base, enumerate congruent
// tuples, fit and verify each, and keep the trial's best if it improves on the
// run's best. Trial-level failures abandon the trial without failing the run.
func (m *Matcher) tryOneBase() {
	base, err := m.selectRandomBase()
	if err != nil {
		m.logger.Debugw("trial abandoned", "trial", m.currentTrial, "error", err)
		return
	}
	congruent, err := m.gen.GenerateCongruents(&base)
	if err != nil {
		m.logger.Debugw("congruent generation failed", "trial", m.currentTrial, "error", err)
		return
	}

	baseCentroid := base.Centroid()
	trialBest := -1.0
	var trialTransform *Transform
	for _, tuple := range congruent {
		coords := make([]r3.Vector, len(tuple))
		for i, idx := range tuple {
			coords[i] = m.sampledQ[idx]
		}
		transform, err := fitTransform(
			base.Coords, coords, baseCentroid, centroidOf(coords),
			m.opts.MaxAngle, m.opts.EstimateScale)
		if err != nil {
			// Candidate discarded, trial continues.
			continue
		}
		if lcp := m.verify(transform); lcp > trialBest {
			trialBest = lcp
			trialTransform = transform
		}
	}
	if trialTransform != nil && trialBest > m.bestLCP {
		m.bestLCP = trialBest
		m.best = trialTransform
		m.logger.Debugw("new best transform", "trial", m.currentTrial, "lcp", m.bestLCP)
	}
}

// selectRandomBase picks a wide, well conditioned triangle from the sampled
// reference cloud and, for the 4-point variant, extends it with the most
// coplanar compatible fourth point.
func (m *Matcher) selectRandomBase() (Base, error) {
	i0, i1, i2, err := m.selectRandomTriangle()
	if err != nil {
		return Base{}, err
	}
	if m.gen.BaseSize() == 3 {
		indices := []int{i0, i1, i2}
		return Base{
			Indices: indices,
			Coords:  []r3.Vector{m.sampledP[i0], m.sampledP[i1], m.sampledP[i2]},
		}, nil
	}

	i3, err := m.selectFourthPoint(i0, i1, i2)
	if err != nil {
		return Base{}, err
	}
	indices := []int{i0, i1, i2, i3}
	coords := []r3.Vector{m.sampledP[i0], m.sampledP[i1], m.sampledP[i2], m.sampledP[i3]}
	base, ok := orderQuadBase(indices, coords)
	if !ok {
		return Base{}, ErrNoValidBase
	}
	return base, nil
}

// selectRandomTriangle draws random triples, keeping the one whose shortest
// edge is longest among those that fit under the base diameter and are not
// near degenerate. Wide bases make the fitted transform robust; bases wider
// than the expected overlap region are unlikely to be all inliers.
func (m *Matcher) selectRandomTriangle() (int, int, int, error) {
	n := len(m.sampledP)
	var best [3]int
	bestMinEdge := -1.0
	for trial := 0; trial < kNumberOfDiameterTrials; trial++ {
		picked := utils.SampleNDistinctInts(3, n, m.rng)
		p0, p1, p2 := m.sampledP[picked[0]], m.sampledP[picked[1]], m.sampledP[picked[2]]
		e01 := p1.Sub(p0).Norm()
		e12 := p2.Sub(p1).Norm()
		e20 := p0.Sub(p2).Norm()
		if e01 > m.maxBaseDiameter || e12 > m.maxBaseDiameter || e20 > m.maxBaseDiameter {
			continue
		}
		minEdge := math.Min(e01, math.Min(e12, e20))
		if minEdge < 0.01*m.maxBaseDiameter || minEdge <= bestMinEdge {
			continue
		}
		if triangleMinAngleSine(p0, p1, p2) < minTriangleAngleSine {
			continue
		}
		best = [3]int{picked[0], picked[1], picked[2]}
		bestMinEdge = minEdge
	}
	if bestMinEdge < 0 {
		return 0, 0, 0, ErrNoValidBase
	}
	return best[0], best[1], best[2], nil
}

// selectFourthPoint scans the sampled reference cloud for the point closest to
// the plane of the triangle among those within base diameter range of all
// three corners.
func (m *Matcher) selectFourthPoint(i0, i1, i2 int) (int, error) {
	p0, p1, p2 := m.sampledP[i0], m.sampledP[i1], m.sampledP[i2]
	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	if normal.Norm() == 0 {
		return 0, ErrNoValidBase
	}
	normal = normal.Normalize()
	// A fourth point nearly on top of a corner adds no constraint.
	minSeparation := 0.01 * m.maxBaseDiameter

	bestIdx := -1
	bestDeviation := math.MaxFloat64
	for k := range m.sampledP {
		if k == i0 || k == i1 || k == i2 {
			continue
		}
		pk := m.sampledP[k]
		d0 := pk.Sub(p0).Norm()
		d1 := pk.Sub(p1).Norm()
		d2 := pk.Sub(p2).Norm()
		if d0 > m.maxBaseDiameter || d1 > m.maxBaseDiameter || d2 > m.maxBaseDiameter {
			continue
		}
		if d0 < minSeparation || d1 < minSeparation || d2 < minSeparation {
			continue
		}
		deviation := math.Abs(pk.Sub(p0).Dot(normal))
		if deviation < bestDeviation {
			bestDeviation = deviation
			bestIdx = k
		}
	}
	if bestIdx < 0 {
		return 0, ErrNoValidBase
	}
	return bestIdx, nil
}

// verify scores a candidate transform: the fraction of sampled target points
// whose transformed position has a reference neighbor within the inlier
// threshold, optionally also gated by normal and color compatibility. The
// scan is partitioned across workers with a per-worker count and a final sum,
// so the result does not depend on scheduling.
func (m *Matcher) verify(transform *Transform) float64 {
	total := len(m.sampledQ)
	if total == 0 {
		return 0
	}
	var counts []int
	//nolint:errcheck
	utils.GroupWorkParallel(
		context.Background(),
		total,
		m.opts.Threads,
		func(numGroups int) {
			counts = make([]int, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			inliers := 0
			return func(memberNum, workNum int) {
					if m.isInlier(transform, workNum) {
						inliers++
					}
				}, func() {
					counts[groupNum] = inliers
				}
		},
	)
	sum := 0
	for _, c := range counts {
		sum += c
	}
	return float64(sum) / float64(total)
}

func (m *Matcher) isInlier(transform *Transform, i int) bool {
	moved := transform.Apply(m.sampledQ[i])
	idx, _, dist, ok := m.kdTree.NearestNeighbor(moved)
	if !ok || dist > m.inlierThreshold {
		return false
	}
	if m.opts.MaxNormalDifference > 0 {
		nq, np := m.dataQ[i], m.dataP[idx]
		if nq != nil && np != nil && nq.HasNormal() && np.HasNormal() {
			a := transform.ApplyToNormal(m.guess.ApplyToNormal(nq.Normal()))
			b := np.Normal()
			if a.Norm() > 0 && b.Norm() > 0 {
				cos := a.Normalize().Dot(b.Normalize())
				if math.Acos(math.Min(1, math.Max(-1, cos))) > m.opts.MaxNormalDifference {
					return false
				}
			}
		}
	}
	if m.opts.MaxColorDistance > 0 {
		cq, cp := m.dataQ[i], m.dataP[idx]
		if cq != nil && cp != nil && cq.HasColor() && cp.HasColor() {
			if colorDistance(cq, cp) > m.opts.MaxColorDistance {
				return false
			}
		}
	}
	return true
}

// meanDistance estimates the mean distance between points in P and their
// nearest neighbor, over a capped subset. It normalizes the user delta to the
// scale of the cloud.
func (m *Matcher) meanDistance() float64 {
	n := utils.MinInt(len(m.sampledP), meanDistanceSubset)
	sum := 0.0
	counted := 0
	for i := 0; i < n; i++ {
		_, dists := m.kdTree.KNearestNeighbors(m.sampledP[i], 2)
		// The closest hit is the query point itself.
		if len(dists) == 2 {
			sum += dists[1]
			counted++
		}
	}
	if counted == 0 {
		return m.pDiameter / math.Sqrt(float64(len(m.sampledP)))
	}
	return sum / float64(counted)
}

// globalTransform composes the best centered-frame transform with the
// centering translations and the initial guess, producing the transform that
// maps the original target cloud onto the reference cloud.
func (m *Matcher) globalTransform() *Transform {
	if m.best == nil {
		return m.guess.Clone()
	}
	toCentroidP := translationTransform(m.centroidP)
	fromCentroidQ := translationTransform(m.centroidQ.Mul(-1))
	global := toCentroidP.Compose(m.best).Compose(fromCentroidQ).Compose(m.guess)
	global.RMS = m.best.RMS
	return global
}

func translationTransform(v r3.Vector) *Transform {
	t := IdentityTransform()
	t.Matrix.Set(0, 3, v.X)
	t.Matrix.Set(1, 3, v.Y)
	t.Matrix.Set(2, 3, v.Z)
	return t
}

func centroidOf(points []r3.Vector) r3.Vector {
	if len(points) == 0 {
		return r3.Vector{}
	}
	var c r3.Vector
	for _, p := range points {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(points)))
}

// triangleMinAngleSine returns the sine of the triangle's smallest interior
// angle, 0 for degenerate triangles.
func triangleMinAngleSine(p0, p1, p2 r3.Vector) float64 {
	sinAt := func(a, b, c r3.Vector) float64 {
		u := b.Sub(a)
		v := c.Sub(a)
		d := u.Norm() * v.Norm()
		if d == 0 {
			return 0
		}
		return u.Cross(v).Norm() / d
	}
	return math.Min(sinAt(p0, p1, p2), math.Min(sinAt(p1, p2, p0), sinAt(p2, p0, p1)))
}

func colorDistance(a, b pointcloud.Data) float64 {
	ar, ag, ab := a.RGB255()
	br, bg, bb := b.RGB255()
	dr := float64(ar) - float64(br)
	dg := float64(ag) - float64(bg)
	db := float64(ab) - float64(bb)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func cloudToSlices(cloud pointcloud.PointCloud) ([]r3.Vector, []pointcloud.Data) {
	points := make([]r3.Vector, 0, cloud.Size())
	data := make([]pointcloud.Data, 0, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector, d pointcloud.Data) bool {
		points = append(points, p)
		data = append(data, d)
		return true
	})
	return points, data
}
