// Package cell implements the periodic simulation cell: the 3x3 basis
// matrix, per-axis periodicity flags, and minimum-image arithmetic that
// every downstream stage (neighbor finders, tessellation, mesh) wraps
// through. Grounded in gofem/inp's Mesh bounding-box bookkeeping, adapted
// from an axis-aligned bounding box to a general triclinic basis.
package cell

import (
	"math"

	"github.com/rodyherrera/volterra/errs"
	"github.com/rodyherrera/volterra/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is a 3x3 column-vector basis (the cell's three edge vectors) plus
// periodicity flags.
type Cell struct {
	Matrix   linalg.Mat3 // columns are the cell's three basis vectors
	inverse  linalg.Mat3
	PBC      [3]bool
	TwoD     bool
	volume   float64
}

// New builds a Cell from three basis vectors and periodicity flags. For a
// 2-D cell (twoD=true) forces pbcZ false: a planar simulation has no
// periodicity to wrap along its normal.
func New(a, b, c r3.Vec, pbcX, pbcY, pbcZ, twoD bool) (*Cell, error) {
	m := linalg.Columns(a, b, c)
	det := m.Det()
	if math.IsNaN(det) || math.Abs(det) < 1e-300 {
		return nil, &errs.InvalidCell{Reason: "zero or NaN determinant"}
	}
	if twoD {
		pbcZ = false
	}
	return &Cell{
		Matrix:  m,
		inverse: m.Inverse(),
		PBC:     [3]bool{pbcX, pbcY, pbcZ},
		TwoD:    twoD,
		volume:  math.Abs(det),
	}, nil
}

// Volume returns the absolute value of the cell's determinant.
func (c *Cell) Volume() float64 { return c.volume }

// AxisVector returns the dim-th basis vector (0,1,2).
func (c *Cell) AxisVector(dim int) r3.Vec { return c.Matrix.Col(dim) }

// AbsoluteToReduced converts an absolute-coordinate point/vector into
// reduced (fractional) cell coordinates.
func (c *Cell) AbsoluteToReduced(p r3.Vec) r3.Vec {
	return c.inverse.MulVec(p)
}

// ReducedToAbsolute converts reduced coordinates back to absolute ones.
func (c *Cell) ReducedToAbsolute(r r3.Vec) r3.Vec {
	return c.Matrix.MulVec(r)
}

// WrapVector applies the minimum-image convention to a displacement vector:
// along each periodic axis it is folded into [-0.5, 0.5) in reduced
// coordinates.
func (c *Cell) WrapVector(v r3.Vec) r3.Vec {
	red := c.AbsoluteToReduced(v)
	comps := [3]float64{red.X, red.Y, red.Z}
	for d := 0; d < 3; d++ {
		if !c.PBC[d] {
			continue
		}
		comps[d] -= math.Floor(comps[d]+0.5)
	}
	return c.ReducedToAbsolute(r3.Vec{X: comps[0], Y: comps[1], Z: comps[2]})
}

// WrapPoint wraps an absolute point into the primary cell image along
// periodic axes.
func (c *Cell) WrapPoint(p r3.Vec) r3.Vec {
	red := c.AbsoluteToReduced(p)
	comps := [3]float64{red.X, red.Y, red.Z}
	for d := 0; d < 3; d++ {
		if !c.PBC[d] {
			continue
		}
		comps[d] -= math.Floor(comps[d])
	}
	return c.ReducedToAbsolute(r3.Vec{X: comps[0], Y: comps[1], Z: comps[2]})
}

// CellNormalVector returns the unit vector normal to the face spanned by
// the other two basis vectors along axis d (d=0 -> normal to b,c plane).
func (c *Cell) CellNormalVector(d int) r3.Vec {
	b := c.AxisVector((d + 1) % 3)
	cc := c.AxisVector((d + 2) % 3)
	n := r3.Cross(b, cc)
	return r3.Unit(n)
}

// IsWrappedVector reports whether v's projection onto any periodic axis's
// normal reaches half that axis vector's length — i.e. whether v, taken at face
// value, would have to cross a periodic boundary to be a legitimate
// minimum-image displacement.
func (c *Cell) IsWrappedVector(v r3.Vec) bool {
	for d := 0; d < 3; d++ {
		if !c.PBC[d] {
			continue
		}
		n := c.CellNormalVector(d)
		axisLen := r3.Norm(c.AxisVector(d))
		proj := r3.Dot(v, n)
		if math.Abs(proj) >= 0.5*axisLen {
			return true
		}
	}
	return false
}
