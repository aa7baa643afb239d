package registration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// threePointGenerator finds congruent triangles in the target cloud. Pairs
// matching one base edge are bucketed by their first point, so completing each
// candidate pair into a triangle only inspects points already known to match a
// second edge.
type threePointGenerator struct {
	points []r3.Vector
	params GeneratorParams
}

// NewThreePointGenerator returns the congruent set generator for the 3-point
// algorithm variant.
func NewThreePointGenerator() CongruentSetGenerator {
	return &threePointGenerator{}
}

func (g *threePointGenerator) BaseSize() int { return 3 }

func (g *threePointGenerator) Initialize(points []r3.Vector, params GeneratorParams) error {
	if len(points) < g.BaseSize() {
		return errors.Wrapf(ErrInvalidConfiguration, "target cloud has %d points, need at least %d", len(points), g.BaseSize())
	}
	g.points = points
	g.params = params
	return nil
}

func (g *threePointGenerator) GenerateCongruents(base *Base) ([][]int, error) {
	if len(base.Coords) != 3 {
		return nil, errors.Errorf("expected a 3-point base, got %d points", len(base.Coords))
	}
	tol := g.params.DistanceTolerance
	edges := base.EdgeLengths()

	// Pairs (i, j) with |ij| ~ |01|, and a bucket by first point of partners
	// at distance ~|20| (candidates for point 2 as seen from point 0).
	pairs01 := extractPairs(g.points, edges[0], tol)
	thirdByFirst := make(map[int][]int)
	for _, pair := range extractPairs(g.points, edges[2], tol) {
		// pair[1] plays base point 2, seen from pair[0] playing base point 0.
		thirdByFirst[pair[0]] = append(thirdByFirst[pair[0]], pair[1])
	}

	var congruent [][]int
	for _, pair := range pairs01 {
		for _, third := range thirdByFirst[pair[0]] {
			if third == pair[0] || third == pair[1] {
				continue
			}
			d := g.points[pair[1]].Sub(g.points[third]).Norm()
			if d >= edges[1]-tol && d <= edges[1]+tol {
				congruent = append(congruent, []int{pair[0], pair[1], third})
			}
		}
	}
	return congruent, nil
}
