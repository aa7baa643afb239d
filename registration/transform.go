package registration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 homogeneous rigid (or similarity) transformation together
// with the RMS residual of the fit that produced it. Candidate transforms are
// ranked by their LCP score, not by RMS.
type Transform struct {
	Matrix *mat.Dense
	Scale  float64
	RMS    float64
}

// IdentityTransform returns the identity transform.
func IdentityTransform() *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Transform{Matrix: m, Scale: 1}
}

// NewTransform builds a transform from a 3x3 rotation, a translation and a
// uniform scale. The scale is folded into the matrix.
func NewTransform(rot mat.Matrix, translation r3.Vector, scale float64) *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, scale*rot.At(i, j))
		}
	}
	m.Set(0, 3, translation.X)
	m.Set(1, 3, translation.Y)
	m.Set(2, 3, translation.Z)
	m.Set(3, 3, 1)
	return &Transform{Matrix: m, Scale: scale}
}

// Apply transforms the given point.
func (t *Transform) Apply(p r3.Vector) r3.Vector {
	m := t.Matrix
	return r3.Vector{X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3), Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3), Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3)}

}

// ApplyToNormal rotates a direction vector, ignoring translation and scale.
func (t *Transform) ApplyToNormal(n r3.Vector) r3.Vector {
	m := t.Matrix
	s := t.Scale
	if s == 0 {
		s = 1
	}
	return r3.Vector{X: (m.At(0, 0)*n.X + m.At(0, 1)*n.Y + m.At(0, 2)*n.Z) / s, Y: (m.At(1, 0)*n.X + m.At(1, 1)*n.Y + m.At(1, 2)*n.Z) / s, Z: (m.At(2, 0)*n.X + m.At(2, 1)*n.Y + m.At(2, 2)*n.Z) / s}

}

// Rotation returns the 3x3 rotation block with the scale divided out.
func (t *Transform) Rotation() *mat.Dense {
	s := t.Scale
	if s == 0 {
		s = 1
	}
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, t.Matrix.At(i, j)/s)
		}
	}
	return rot
}

// Translation returns the translation component.
func (t *Transform) Translation() r3.Vector {
	return r3.Vector{X: t.Matrix.At(0, 3), Y: t.Matrix.At(1, 3), Z: t.Matrix.At(2, 3)}
}

// Compose returns the transform equivalent to applying other first, then t.
func (t *Transform) Compose(other *Transform) *Transform {
	m := mat.NewDense(4, 4, nil)
	m.Mul(t.Matrix, other.Matrix)
	return &Transform{Matrix: m, Scale: t.Scale * other.Scale, RMS: t.RMS}
}

// Clone returns a deep copy of the transform.
func (t *Transform) Clone() *Transform {
	return &Transform{Matrix: mat.DenseCopyOf(t.Matrix), Scale: t.Scale, RMS: t.RMS}
}

// RotationAngle returns the rotation angle in radians of a 3x3 rotation
// matrix, in [0, pi].
func RotationAngle(rot mat.Matrix) float64 {
	cos := (rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2) - 1) / 2
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// RotationAboutAxis returns the 3x3 rotation matrix for a rotation of theta
// radians about the given axis (Rodrigues' formula).
func RotationAboutAxis(axis r3.Vector, theta float64) *mat.Dense {
	u := axis.Normalize()
	c := math.Cos(theta)
	s := math.Sin(theta)
	oc := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + u.X*u.X*oc, u.X*u.Y*oc - u.Z*s, u.X*u.Z*oc + u.Y*s,
		u.Y*u.X*oc + u.Z*s, c + u.Y*u.Y*oc, u.Y*u.Z*oc - u.X*s,
		u.Z*u.X*oc - u.Y*s, u.Z*u.Y*oc + u.X*s, c + u.Z*u.Z*oc,
	})
}
