package registration

import (
	"github.com/golang/geo/r3"
)

// Base is an ordered tuple of indices into the sampled reference cloud, with
// the coordinates and pairwise distance invariants cached. A new base is
// selected every trial; bases are never shared across trials.
type Base struct {
	Indices []int
	Coords  []r3.Vector

	// Invariant1 and Invariant2 are the fractions at which the two segments
	// of a quad base cross each other. They are meaningful for 4-point bases
	// only; 3-point bases are characterized by their edge lengths alone.
	Invariant1, Invariant2 float64

	// CrossGap is the distance between the two segments' closest points. It
	// is zero for an exactly planar quad and, like the crossing fractions, is
	// preserved by rigid transforms, so congruent quads in the target cloud
	// must reproduce it.
	CrossGap float64
}

// Centroid returns the centroid of the base points.
func (b *Base) Centroid() r3.Vector {
	var c r3.Vector
	for _, p := range b.Coords {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(b.Coords)))
}

// EdgeLengths returns the pairwise distances of a 3-point base in the order
// |01|, |12|, |20|.
func (b *Base) EdgeLengths() [3]float64 {
	return [3]float64{
		b.Coords[0].Sub(b.Coords[1]).Norm(),
		b.Coords[1].Sub(b.Coords[2]).Norm(),
		b.Coords[2].Sub(b.Coords[0]).Norm(),
	}
}

// closestSegmentParams returns the parameters s, t of the closest points
// p1 + s(q1-p1) and p2 + t(q2-p2) of two segments, and the gap between them.
// ok is false when the segments are near parallel.
func closestSegmentParams(p1, q1, p2, q2 r3.Vector) (s, t, gap float64, ok bool) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	b := d1.Dot(d2)
	c := d2.Dot(d2)
	d := d1.Dot(r)
	e := d2.Dot(r)
	denom := a*c - b*b
	if denom < 1e-12*a*c || a == 0 || c == 0 {
		return 0, 0, 0, false
	}
	s = (b*e - c*d) / denom
	t = (a*e - b*d) / denom
	gap = p1.Add(d1.Mul(s)).Sub(p2.Add(d2.Mul(t))).Norm()
	return s, t, gap, true
}

// orderQuadBase reorders four roughly coplanar points so that segments
// (0,1) and (2,3) cross each other, and returns the crossing fractions along
// each segment. These fractions are invariant under rigid transforms and are
// what lets congruent quads in the target cloud be found from pairs alone.
// ok is false when no pairing of the four points yields intersecting segments.
func orderQuadBase(indices []int, coords []r3.Vector) (Base, bool) {
	pairings := [3][4]int{
		{0, 1, 2, 3},
		{0, 2, 1, 3},
		{0, 3, 1, 2},
	}
	best := Base{}
	bestGap := -1.0
	for _, perm := range pairings {
		p1, q1 := coords[perm[0]], coords[perm[1]]
		p2, q2 := coords[perm[2]], coords[perm[3]]
		s, t, gap, ok := closestSegmentParams(p1, q1, p2, q2)
		if !ok || s < 0 || s > 1 || t < 0 || t > 1 {
			continue
		}
		if bestGap < 0 || gap < bestGap {
			bestGap = gap
			best = Base{
				Indices:    []int{indices[perm[0]], indices[perm[1]], indices[perm[2]], indices[perm[3]]},
				Coords:     []r3.Vector{p1, q1, p2, q2},
				Invariant1: s,
				Invariant2: t,
				CrossGap:   gap,
			}
		}
	}
	if bestGap < 0 {
		return Base{}, false
	}
	return best, true
}
