package registration

import "github.com/golang/geo/r3"

// GeneratorParams carries the tolerances a congruent set generator should
// honor. DistanceTolerance is absolute, in cloud units; InvariantTolerance is
// dimensionless and applies to crossing fraction comparisons.
type GeneratorParams struct {
	DistanceTolerance  float64
	InvariantTolerance float64
}

// CongruentSetGenerator enumerates, for a given base from the reference cloud,
// all same-invariant point tuples of the target cloud. It is the pluggable
// piece that distinguishes the 4-point algorithm from the 3-point one; the
// match controller is otherwise variant agnostic.
//
// Implementations must guarantee that every returned tuple satisfies the
// base's pairwise distance invariants within the configured tolerances, and
// that generation terminates.
type CongruentSetGenerator interface {
	// BaseSize returns the number of points per base (3 or 4).
	BaseSize() int

	// Initialize hands the generator the target cloud's sampled positions and
	// the run tolerances. Called once per run, before any trial.
	Initialize(points []r3.Vector, params GeneratorParams) error

	// GenerateCongruents returns index tuples into the initialized point set,
	// each a candidate correspondence for the base, ordered point-for-point.
	GenerateCongruents(base *Base) ([][]int, error)
}

// pairList is a set of ordered index pairs whose distance matches a probe
// length within tolerance.
type pairList [][2]int

// extractPairs returns all ordered pairs of points at distance ~length. Both
// orders of every unordered pair are included, since a base edge may match a
// target edge in either direction.
func extractPairs(points []r3.Vector, length, tolerance float64) pairList {
	var pairs pairList
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := points[i].Sub(points[j]).Norm()
			if d >= length-tolerance && d <= length+tolerance {
				pairs = append(pairs, [2]int{i, j}, [2]int{j, i})
			}
		}
	}
	return pairs
}
