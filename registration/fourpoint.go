package registration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/fourpcs/pointcloud"
)

// fourPointGenerator finds congruent planar quads in the target cloud using
// the 4PCS pairing construction: every candidate quad is two point pairs whose
// lengths match the base's two segments and whose invariant crossing points
// coincide. Matching crossing points through a KD-tree keeps the search
// near quadratic instead of cubic.
type fourPointGenerator struct {
	points []r3.Vector
	params GeneratorParams
}

// NewFourPointGenerator returns the congruent set generator for the 4-point
// (4PCS) algorithm variant.
func NewFourPointGenerator() CongruentSetGenerator {
	return &fourPointGenerator{}
}

func (g *fourPointGenerator) BaseSize() int { return 4 }

func (g *fourPointGenerator) Initialize(points []r3.Vector, params GeneratorParams) error {
	if len(points) < g.BaseSize() {
		return errors.Wrapf(ErrInvalidConfiguration, "target cloud has %d points, need at least %d", len(points), g.BaseSize())
	}
	g.points = points
	g.params = params
	return nil
}

func (g *fourPointGenerator) GenerateCongruents(base *Base) ([][]int, error) {
	if len(base.Coords) != 4 {
		return nil, errors.Errorf("expected a 4-point base, got %d points", len(base.Coords))
	}
	tol := g.params.DistanceTolerance

	length1 := base.Coords[0].Sub(base.Coords[1]).Norm()
	length2 := base.Coords[2].Sub(base.Coords[3]).Norm()
	pairs1 := extractPairs(g.points, length1, tol)
	pairs2 := extractPairs(g.points, length2, tol)
	if len(pairs1) == 0 || len(pairs2) == 0 {
		return nil, nil
	}

	// Crossing points implied by each first-segment pair, assuming it plays
	// the role of base segment (0,1).
	crossings := make([]r3.Vector, len(pairs1))
	for i, pair := range pairs1 {
		a, b := g.points[pair[0]], g.points[pair[1]]
		crossings[i] = a.Add(b.Sub(a).Mul(base.Invariant1))
	}
	tree := pointcloud.NewKDTree(crossings)

	// The two crossing points of a congruent quad sit exactly CrossGap apart
	// (zero for a planar base), so matches live in an annulus around each
	// probe point.
	var congruent [][]int
	for _, pair := range pairs2 {
		a, b := g.points[pair[0]], g.points[pair[1]]
		probe := a.Add(b.Sub(a).Mul(base.Invariant2))
		indices, dists := tree.RadiusSearch(probe, base.CrossGap+tol)
		for k, idx := range indices {
			if dists[k] < base.CrossGap-tol {
				continue
			}
			first := pairs1[idx]
			if first[0] == pair[0] || first[0] == pair[1] ||
				first[1] == pair[0] || first[1] == pair[1] {
				continue
			}
			congruent = append(congruent, []int{first[0], first[1], pair[0], pair[1]})
		}
	}
	return congruent, nil
}
