package registration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// fitTransform computes the closed-form least-squares similarity transform
// bringing candidate onto ref (Horn's absolute orientation, quaternion form).
// Both slices must hold at least three points; only the first three drive the
// rotation fit. For a planar 4-point base the solution over three points is
// better conditioned, and the quaternion form can never produce a reflection,
// so the remaining points only contribute to the reported RMS.
//
// maxAngle > 0 rejects rotations larger than it. The fit is pure: no inputs
// are mutated.
func fitTransform(
	ref, cand []r3.Vector,
	centroidRef, centroidCand r3.Vector,
	maxAngle float64,
	estimateScale bool,
) (*Transform, error) {
	if len(ref) < 3 || len(cand) < 3 || len(ref) != len(cand) {
		return nil, ErrDegenerateConfiguration
	}

	refC := make([]r3.Vector, 3)
	candC := make([]r3.Vector, 3)
	for i := 0; i < 3; i++ {
		refC[i] = ref[i].Sub(centroidRef)
		candC[i] = cand[i].Sub(centroidCand)
	}
	if isNearCollinear(refC) || isNearCollinear(candC) {
		return nil, ErrDegenerateConfiguration
	}

	scale := 1.0
	if estimateScale {
		var sumRef, sumCand float64
		for i := 0; i < 3; i++ {
			sumRef += refC[i].Norm2()
			sumCand += candC[i].Norm2()
		}
		if sumCand < 1e-18 {
			return nil, ErrDegenerateConfiguration
		}
		scale = math.Sqrt(sumRef / sumCand)
	}

	// Cross covariance between the centered candidate (moving) and reference
	// (fixed) triples.
	var s [3][3]float64
	for i := 0; i < 3; i++ {
		c := [3]float64{candC[i].X, candC[i].Y, candC[i].Z}
		r := [3]float64{refC[i].X, refC[i].Y, refC[i].Z}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				s[a][b] += c[a] * r[b]
			}
		}
	}
	trace := s[0][0] + s[1][1] + s[2][2]
	n := mat.NewSymDense(4, []float64{
		trace, s[1][2] - s[2][1], s[2][0] - s[0][2], s[0][1] - s[1][0],
		s[1][2] - s[2][1], s[0][0] + s[0][0] - trace, s[0][1] + s[1][0], s[0][2] + s[2][0],
		s[2][0] - s[0][2], s[0][1] + s[1][0], s[1][1] + s[1][1] - trace, s[1][2] + s[2][1],
		s[0][1] - s[1][0], s[0][2] + s[2][0], s[1][2] + s[2][1], s[2][2] + s[2][2] - trace,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(n, true); !ok {
		return nil, ErrDegenerateConfiguration
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// Eigenvalues are in ascending order; the unit quaternion we want is the
	// eigenvector of the largest one.
	q := quat.Number{
		Real: vecs.At(0, 3),
		Imag: vecs.At(1, 3),
		Jmag: vecs.At(2, 3),
		Kmag: vecs.At(3, 3),
	}
	norm := quat.Abs(q)
	if norm < 1e-12 || math.IsNaN(norm) {
		return nil, ErrDegenerateConfiguration
	}
	q = quat.Scale(1/norm, q)
	rot := quatToRotationMatrix(q)

	if maxAngle > 0 && RotationAngle(rot) > maxAngle {
		return nil, ErrDegenerateConfiguration
	}

	// t = cRef - s * R * cCand.
	rc := applyRotation(rot, centroidCand)
	translation := centroidRef.Sub(rc.Mul(scale))
	transform := NewTransform(rot, translation, scale)

	var sumSq float64
	for i := range ref {
		d := ref[i].Sub(transform.Apply(cand[i]))
		sumSq += d.Norm2()
	}
	transform.RMS = math.Sqrt(sumSq / float64(len(ref)))
	return transform, nil
}

// isNearCollinear reports whether three centered points span an area too small
// relative to their extent to support a stable rotation fit.
func isNearCollinear(pts []r3.Vector) bool {
	v1 := pts[1].Sub(pts[0])
	v2 := pts[2].Sub(pts[0])
	scale := v1.Norm() * v2.Norm()
	if scale < 1e-18 {
		return true
	}
	return v1.Cross(v2).Norm() < 1e-6*scale
}

func quatToRotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

func applyRotation(rot mat.Matrix, p r3.Vector) r3.Vector {
	return r3.Vector{X: rot.At(0, 0)*p.X + rot.At(0, 1)*p.Y + rot.At(0, 2)*p.Z, Y: rot.At(1, 0)*p.X + rot.At(1, 1)*p.Y + rot.At(1, 2)*p.Z, Z: rot.At(2, 0)*p.X + rot.At(2, 1)*p.Y + rot.At(2, 2)*p.Z}

}
