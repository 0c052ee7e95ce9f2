// Package linalg holds the small, fixed-size linear algebra the analysis
// core needs for rotations and lattice vectors. Points and free vectors are
// gonum's r3.Vec; 3x3 matrices (rotations, deformation gradients, cluster
// transitions) are the plain Mat3 below rather than a general mat.Dense —
// gofem's own shp/fem packages favour small hand-rolled matrix types over a
// general linear-algebra object for fixed-size per-element work, and a
// rotation matrix is exactly that kind of object. The general gonum/mat
// machinery is reserved for the one place that genuinely needs it: the SVD
// inside the Horn/Kabsch alignment (see horn.go).
package linalg

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a 3x3 matrix stored row-major.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Mul returns m*n.
func (m Mat3) Mul(n Mat3) (out Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * n[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// MulVec returns m*v.
func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() (out Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// Inverse returns the inverse of m, assuming det(m) != 0 (true for any
// rotation or non-degenerate cell basis this package is asked to invert).
func (m Mat3) Inverse() Mat3 {
	d := m.Det()
	var c Mat3
	c[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / d
	c[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / d
	c[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / d
	c[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / d
	c[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / d
	c[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / d
	c[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / d
	c[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / d
	c[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / d
	return c
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// ApproxEqual reports whether every entry of m and n differs by at most eps.
func (m Mat3) ApproxEqual(n Mat3, eps float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-n[i][j]) > eps {
				return false
			}
		}
	}
	return true
}

// IsIdentity reports whether m equals the identity within eps.
func (m Mat3) IsIdentity(eps float64) bool {
	return m.ApproxEqual(Identity3(), eps)
}

// Columns builds a Mat3 from three column vectors, as used for a
// SimulationCell's basis matrix.
func Columns(a, b, c r3.Vec) Mat3 {
	return Mat3{
		{a.X, b.X, c.X},
		{a.Y, b.Y, c.Y},
		{a.Z, b.Z, c.Z},
	}
}

// Col returns column i (0,1,2) of m.
func (m Mat3) Col(i int) r3.Vec {
	return r3.Vec{X: m[0][i], Y: m[1][i], Z: m[2][i]}
}

// RotationAngleDegrees returns the angle of the rotation m represents, via
// the standard trace identity cos(theta) = (tr(m)-1)/2, clamped against
// floating-point drift pushing the argument outside [-1,1].
func (m Mat3) RotationAngleDegrees() float64 {
	trace := m[0][0] + m[1][1] + m[2][2]
	c := (trace - 1) / 2
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}
