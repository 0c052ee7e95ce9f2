package structid

import (
	"math"

	"github.com/rodyherrera/volterra/linalg"
)

// cubicSymmetryGroup is the 24 proper rotations of the cube's point group,
// built from all signed permutation matrices with determinant +1.
var cubicSymmetryGroup = buildCubicGroup()

func buildCubicGroup() []linalg.Mat3 {
	var out []linalg.Mat3
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	signs := [8][3]float64{
		{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
		{-1, 1, 1}, {-1, 1, -1}, {-1, -1, 1}, {-1, -1, -1},
	}
	for _, p := range perms {
		for _, s := range signs {
			var m linalg.Mat3
			for row := 0; row < 3; row++ {
				m[row][p[row]] = s[row]
			}
			if math.Abs(m.Det()-1) < 1e-9 {
				out = append(out, m)
			}
		}
	}
	return out
}

// hexagonalSymmetryGroup is the 12 proper rotations of the hexagonal point
// group about the z (c-axis): 6-fold rotations about z, composed with the
// 2-fold rotations about the in-plane axes.
var hexagonalSymmetryGroup = buildHexGroup()

func buildHexGroup() []linalg.Mat3 {
	var out []linalg.Mat3
	for k := 0; k < 6; k++ {
		ang := float64(k) * math.Pi / 3
		rz := rotZ(ang)
		out = append(out, rz)
		out = append(out, rz.Mul(rotX(math.Pi)))
	}
	return out
}

func rotZ(a float64) linalg.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return linalg.Mat3{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

func rotX(a float64) linalg.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return linalg.Mat3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// rotationAngleDegrees returns the rotation angle (in degrees) of a proper
// rotation matrix, from its trace: trace = 1 + 2*cos(theta).
func rotationAngleDegrees(m linalg.Mat3) float64 {
	tr := m[0][0] + m[1][1] + m[2][2]
	c := clamp((tr-1)/2, -1, 1)
	return math.Acos(c) * 180 / math.Pi
}

// CubicDisorientation returns the minimum rotation angle (degrees) between
// two orientations modulo the cubic point group.
func CubicDisorientation(a, b linalg.Mat3) float64 {
	return minDisorientation(a, b, cubicSymmetryGroup)
}

// HexagonalDisorientation returns the minimum rotation angle (degrees)
// between two orientations modulo the hexagonal point group.
func HexagonalDisorientation(a, b linalg.Mat3) float64 {
	return minDisorientation(a, b, hexagonalSymmetryGroup)
}

func minDisorientation(a, b linalg.Mat3, group []linalg.Mat3) float64 {
	aInv := a.Transpose() // rotation matrices are orthogonal: inverse == transpose
	best := math.Inf(1)
	for _, g := range group {
		// misorientation candidates: aInv * b * g, for every symmetry
		// operation g of the (shared) point group.
		m := aInv.Mul(b.Mul(g))
		ang := rotationAngleDegrees(m)
		if ang < best {
			best = ang
		}
	}
	return best
}

// Disorientation dispatches on the structure type's symmetry group: cubic
// lattices use the 24-rotation cubic group, hexagonal ones use the
// 12-rotation hexagonal group.
func Disorientation(t StructureType, a, b linalg.Mat3) float64 {
	switch t {
	case HCP, HexDiamond:
		return HexagonalDisorientation(a, b)
	default:
		return CubicDisorientation(a, b)
	}
}
