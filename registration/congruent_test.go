package registration

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viam-labs/fourpcs/utils"
)

func TestExtractPairs(t *testing.T) {
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 5, Y: 5, Z: 5},
	}
	pairs := extractPairs(points, 1, 0.01)
	// (0,1) and (0,2) at distance 1, both orders each.
	test.That(t, pairs, test.ShouldHaveLength, 4)
	for _, pair := range pairs {
		d := points[pair[0]].Sub(points[pair[1]]).Norm()
		test.That(t, d, test.ShouldAlmostEqual, 1)
	}

	pairs = extractPairs(points, 100, 0.01)
	test.That(t, pairs, test.ShouldBeEmpty)
}

// transformedPoints maps every point through a fixed rigid motion.
func transformedPoints(points []r3.Vector, tr *Transform) []r3.Vector {
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = tr.Apply(p)
	}
	return out
}

func containsTupleOver(congruent [][]int, indices []int) bool {
	want := append([]int(nil), indices...)
	sort.Ints(want)
	for _, tuple := range congruent {
		got := append([]int(nil), tuple...)
		sort.Ints(got)
		if len(got) != len(want) {
			continue
		}
		match := true
		for i := range got {
			if got[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestFourPointGeneratorFindsCongruentQuad(t *testing.T) {
	corners := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 1.2, Y: 0.9, Z: 0},
		{X: -0.1, Y: 0.8, Z: 0},
	}
	base, ok := orderQuadBase([]int{0, 1, 2, 3}, corners)
	test.That(t, ok, test.ShouldBeTrue)

	truth := NewTransform(
		RotationAboutAxis(r3.Vector{X: 1, Y: 2, Z: 3}, utils.DegToRad(70)),
		r3.Vector{X: 4, Y: -2, Z: 1}, 1)
	target := transformedPoints(corners, truth)
	// Clutter far from the quad.
	target = append(target,
		r3.Vector{X: 20, Y: 20, Z: 20},
		r3.Vector{X: -15, Y: 3, Z: 9},
		r3.Vector{X: 7, Y: -12, Z: 30},
	)

	gen := NewFourPointGenerator()
	test.That(t, gen.BaseSize(), test.ShouldEqual, 4)
	test.That(t, gen.Initialize(target, GeneratorParams{DistanceTolerance: 0.01}), test.ShouldBeNil)

	congruent, err := gen.GenerateCongruents(&base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, congruent, test.ShouldNotBeEmpty)
	test.That(t, containsTupleOver(congruent, []int{0, 1, 2, 3}), test.ShouldBeTrue)

	// Every returned tuple admits a tight rigid fit against the base.
	for _, tuple := range congruent {
		coords := make([]r3.Vector, len(tuple))
		for i, idx := range tuple {
			coords[i] = target[idx]
		}
		got, err := fitTransform(base.Coords, coords, base.Centroid(), centroidOf(coords), 0, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.RMS, test.ShouldBeLessThan, 0.05)
	}
}

func TestFourPointGeneratorNonPlanarBase(t *testing.T) {
	corners := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 1, Z: 0.15},
	}
	base, ok := orderQuadBase([]int{0, 1, 2, 3}, corners)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, base.CrossGap, test.ShouldBeGreaterThan, 0)

	truth := NewTransform(
		RotationAboutAxis(r3.Vector{X: 0, Y: 1, Z: 0}, utils.DegToRad(50)),
		r3.Vector{X: -3, Y: 2, Z: 2}, 1)
	target := transformedPoints(corners, truth)
	target = append(target, r3.Vector{X: 10, Y: 10, Z: 10}, r3.Vector{X: -9, Y: 14, Z: 2})

	gen := NewFourPointGenerator()
	test.That(t, gen.Initialize(target, GeneratorParams{DistanceTolerance: 0.01}), test.ShouldBeNil)

	congruent, err := gen.GenerateCongruents(&base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, containsTupleOver(congruent, []int{0, 1, 2, 3}), test.ShouldBeTrue)
}

func TestFourPointGeneratorErrors(t *testing.T) {
	gen := NewFourPointGenerator()
	err := gen.Initialize([]r3.Vector{{X: 0, Y: 0, Z: 0}}, GeneratorParams{})
	test.That(t, err, test.ShouldNotBeNil)

	points := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}}
	test.That(t, gen.Initialize(points, GeneratorParams{DistanceTolerance: 0.01}), test.ShouldBeNil)
	_, err = gen.GenerateCongruents(&Base{Coords: points[:3]})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestThreePointGeneratorFindsCongruentTriangle(t *testing.T) {
	// Scalene, so matches are unambiguous up to the true correspondence.
	corners := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 0.5, Y: 1.3, Z: 0},
	}
	base := Base{Indices: []int{0, 1, 2}, Coords: corners}

	truth := NewTransform(
		RotationAboutAxis(r3.Vector{X: 3, Y: -1, Z: 2}, utils.DegToRad(110)),
		r3.Vector{X: 1, Y: 8, Z: -4}, 1)
	target := transformedPoints(corners, truth)
	target = append(target, r3.Vector{X: 12, Y: 0, Z: 0}, r3.Vector{X: 0, Y: -11, Z: 6}, r3.Vector{X: 25, Y: 25, Z: 25})

	gen := NewThreePointGenerator()
	test.That(t, gen.BaseSize(), test.ShouldEqual, 3)
	test.That(t, gen.Initialize(target, GeneratorParams{DistanceTolerance: 0.01}), test.ShouldBeNil)

	congruent, err := gen.GenerateCongruents(&base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, congruent, test.ShouldNotBeEmpty)
	test.That(t, containsTupleOver(congruent, []int{0, 1, 2}), test.ShouldBeTrue)

	edges := base.EdgeLengths()
	for _, tuple := range congruent {
		got := Base{Coords: []r3.Vector{target[tuple[0]], target[tuple[1]], target[tuple[2]]}}
		gotEdges := got.EdgeLengths()
		for i := range edges {
			test.That(t, gotEdges[i], test.ShouldAlmostEqual, edges[i], 0.05)
		}
	}
}

func TestThreePointGeneratorErrors(t *testing.T) {
	gen := NewThreePointGenerator()
	err := gen.Initialize([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}, GeneratorParams{})
	test.That(t, err, test.ShouldNotBeNil)

	points := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	test.That(t, gen.Initialize(points, GeneratorParams{DistanceTolerance: 0.01}), test.ShouldBeNil)
	_, err = gen.GenerateCongruents(&Base{Coords: points[:2]})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGeneratorDeterminism(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	points := make([]r3.Vector, 60)
	for i := range points {
		points[i] = r3.Vector{X: r.Float64() * 4, Y: r.Float64() * 4, Z: r.Float64() * 4}
	}
	base, ok := orderQuadBase([]int{0, 1, 2, 3},
		[]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}})
	test.That(t, ok, test.ShouldBeTrue)

	run := func() [][]int {
		gen := NewFourPointGenerator()
		test.That(t, gen.Initialize(points, GeneratorParams{DistanceTolerance: 0.2}), test.ShouldBeNil)
		congruent, err := gen.GenerateCongruents(&base)
		test.That(t, err, test.ShouldBeNil)
		return congruent
	}
	test.That(t, run(), test.ShouldResemble, run())
}
